package alert

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// Tone is mono PCM16 audio.
type Tone struct {
	Samples    []int16
	SampleRate int
}

// NewTone generates a sine tone with short linear fades to avoid clicks.
func NewTone(frequency float64, d time.Duration, volume float64, sampleRate int) Tone {
	n := int(float64(sampleRate) * d.Seconds())
	samples := make([]int16, n)
	fade := sampleRate / 200 // 5ms
	for i := 0; i < n; i++ {
		amp := volume
		if fade > 0 {
			if i < fade {
				amp *= float64(i) / float64(fade)
			} else if n-i < fade {
				amp *= float64(n-i) / float64(fade)
			}
		}
		v := amp * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
		samples[i] = int16(v * 32767)
	}
	return Tone{Samples: samples, SampleRate: sampleRate}
}

// Duration returns the tone length.
func (t Tone) Duration() time.Duration {
	if t.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(t.Samples)) * time.Second / time.Duration(t.SampleRate)
}

// PCM returns little-endian PCM16 bytes.
func (t Tone) PCM() []byte {
	buf := make([]byte, len(t.Samples)*2)
	for i, s := range t.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// WAV returns the tone as a RIFF/WAVE file.
func (t Tone) WAV() []byte {
	pcm := t.PCM()
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))             // chunk size
	binary.Write(&b, binary.LittleEndian, uint16(1))              // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1))              // mono
	binary.Write(&b, binary.LittleEndian, uint32(t.SampleRate))   // sample rate
	binary.Write(&b, binary.LittleEndian, uint32(t.SampleRate*2)) // byte rate
	binary.Write(&b, binary.LittleEndian, uint16(2))              // block align
	binary.Write(&b, binary.LittleEndian, uint16(16))             // bits per sample
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}
