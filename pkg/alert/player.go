package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Player plays one tone to completion.
type Player interface {
	Play(ctx context.Context, tone Tone) error
	Name() string
}

// NewPlayer creates the player for backend. BackendAuto picks by platform.
func NewPlayer(backend Backend) (Player, error) {
	if backend == "" || backend == BackendAuto {
		backend = detectBackend()
	}
	switch backend {
	case BackendAplay:
		if _, err := exec.LookPath("aplay"); err != nil {
			return nil, fmt.Errorf("alert: aplay not found: %w", err)
		}
		return &AplayPlayer{}, nil
	case BackendAfplay:
		if _, err := exec.LookPath("afplay"); err != nil {
			return nil, fmt.Errorf("alert: afplay not found: %w", err)
		}
		return &AfplayPlayer{}, nil
	case BackendBell:
		return &BellPlayer{W: os.Stdout}, nil
	case BackendMock:
		return NewMockPlayer(), nil
	default:
		return nil, fmt.Errorf("alert: unsupported backend: %s", backend)
	}
}

// AplayPlayer pipes raw PCM into aplay.
type AplayPlayer struct {
	Device string // ALSA device, empty for default
}

// Name returns the backend name.
func (p *AplayPlayer) Name() string { return string(BackendAplay) }

// Play runs aplay until the tone finishes.
func (p *AplayPlayer) Play(ctx context.Context, tone Tone) error {
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(tone.SampleRate)}
	if p.Device != "" {
		args = append(args, "-D", p.Device)
	}
	cmd := exec.CommandContext(ctx, "aplay", args...)
	cmd.Stdin = bytes.NewReader(tone.PCM())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("aplay: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// AfplayPlayer writes the tone to a temporary WAV once and plays it with
// afplay.
type AfplayPlayer struct {
	once sync.Once
	path string
	err  error
}

// Name returns the backend name.
func (p *AfplayPlayer) Name() string { return string(BackendAfplay) }

// Play runs afplay until the tone finishes.
func (p *AfplayPlayer) Play(ctx context.Context, tone Tone) error {
	p.once.Do(func() {
		p.path = filepath.Join(os.TempDir(), "posture-police-beep.wav")
		p.err = os.WriteFile(p.path, tone.WAV(), 0o644)
	})
	if p.err != nil {
		return fmt.Errorf("afplay: write tone: %w", p.err)
	}
	if out, err := exec.CommandContext(ctx, "afplay", p.path).CombinedOutput(); err != nil {
		return fmt.Errorf("afplay: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	W io.Writer
}

// Name returns the backend name.
func (p *BellPlayer) Name() string { return string(BackendBell) }

// Play writes BEL.
func (p *BellPlayer) Play(ctx context.Context, tone Tone) error {
	_, err := p.W.Write([]byte{'\a'})
	return err
}

// MockPlayer records tones for testing.
type MockPlayer struct {
	mu    sync.Mutex
	plays int
	err   error
	hold  time.Duration

	// Played receives a value for every tone, if non-nil and not full.
	Played chan Tone
}

// NewMockPlayer creates a mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{Played: make(chan Tone, 16)}
}

// Name returns the backend name.
func (p *MockPlayer) Name() string { return string(BackendMock) }

// Play records the tone.
func (p *MockPlayer) Play(ctx context.Context, tone Tone) error {
	p.mu.Lock()
	p.plays++
	err := p.err
	hold := p.hold
	p.mu.Unlock()

	select {
	case p.Played <- tone:
	default:
	}
	if hold > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hold):
		}
	}
	return err
}

// Plays returns the number of tones played.
func (p *MockPlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

// SetHold makes each play last d, like a real device.
func (p *MockPlayer) SetHold(d time.Duration) {
	p.mu.Lock()
	p.hold = d
	p.mu.Unlock()
}

// SetError makes subsequent plays fail with err.
func (p *MockPlayer) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}
