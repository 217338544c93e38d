package alert

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Beeper is a Sink that plays a tone every Interval while Beep requests
// keep arriving.
type Beeper struct {
	cfg    Config
	player Player
	tone   Tone
	logger *slog.Logger

	// lastRequest is the UnixNano of the latest Beep call.
	lastRequest atomic.Int64
	wake        chan struct{}
	quiet       chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
	now         func() time.Time

	// stopTone cancels the tone being played, if any.
	mu       sync.Mutex
	stopTone context.CancelFunc

	tones atomic.Int64
}

// NewBeeper starts a beeper goroutine playing through player.
func NewBeeper(cfg Config, player Player, logger *slog.Logger) (*Beeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Beeper{
		cfg:    cfg,
		player: player,
		tone:   NewTone(cfg.Frequency, cfg.Duration, cfg.Volume, cfg.SampleRate),
		logger: logger,
		wake:   make(chan struct{}, 1),
		quiet:  make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
		now:    time.Now,
	}

	logger.Info("alert sink started",
		"player", player.Name(),
		"frequency", cfg.Frequency,
		"duration_ms", cfg.Duration.Milliseconds(),
	)

	go b.loop(ctx)
	return b, nil
}

// New creates a Beeper with the player selected by cfg.Backend.
func New(cfg Config, logger *slog.Logger) (*Beeper, error) {
	player, err := NewPlayer(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return NewBeeper(cfg, player, logger)
}

// Beep records a request and wakes the player. It never blocks.
func (b *Beeper) Beep() {
	b.lastRequest.Store(b.now().UnixNano())
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Stop silences the beeper at once: the tone being played is cut short
// and no further tone plays until the next Beep.
func (b *Beeper) Stop() {
	b.lastRequest.Store(0)

	b.mu.Lock()
	if b.stopTone != nil {
		b.stopTone()
	}
	b.mu.Unlock()

	select {
	case b.quiet <- struct{}{}:
	default:
	}
}

// Tones returns the number of tones played so far.
func (b *Beeper) Tones() int64 {
	return b.tones.Load()
}

// active reports whether a Beep arrived within the last interval window.
func (b *Beeper) active() bool {
	last := b.lastRequest.Load()
	if last == 0 {
		return false
	}
	return b.now().Sub(time.Unix(0, last)) <= 2*b.cfg.Interval
}

func (b *Beeper) loop(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
		select {
		case <-b.quiet:
		default:
		}

		for b.active() && ctx.Err() == nil {
			start := b.now()
			b.play(ctx)

			wait := b.cfg.Interval - b.now().Sub(start)
			if wait <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-b.quiet:
			case <-time.After(wait):
			}
		}
	}
}

// play plays one tone. Stop cancels it.
func (b *Beeper) play(ctx context.Context) {
	toneCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	if !b.active() {
		b.mu.Unlock()
		return
	}
	b.stopTone = cancel
	b.mu.Unlock()

	err := b.player.Play(toneCtx, b.tone)

	b.mu.Lock()
	b.stopTone = nil
	b.mu.Unlock()

	switch {
	case err != nil && toneCtx.Err() == nil:
		b.logger.Warn("alert tone failed", "player", b.player.Name(), "error", err)
	case err == nil:
		b.tones.Add(1)
	}
}

// Close stops the player goroutine.
func (b *Beeper) Close() error {
	b.closeOnce.Do(func() {
		b.Stop()
		b.cancel()
		<-b.done
	})
	return nil
}
