// Package audio bridges a mono sample source to the platform audio
// device. Sources produce corrected mono blocks; the stream reader
// duplicates them to the stereo float32 layout the device consumes.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source produces mono samples on demand. Fill is called on the audio
// thread; implementations must not block.
type Source interface {
	Fill(dst []float32)
}

// FinishingSource is a Source with a defined end. When Finished returns
// true the stream reports io.EOF and the device drains.
type FinishingSource interface {
	Source
	Finished() bool
}

// StreamReader adapts a mono Source to the io.Reader the audio context
// expects: interleaved stereo float32, little-endian.
type StreamReader struct {
	mu     sync.Mutex
	source Source
	mono   []float32
}

func NewStreamReader(source Source) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if cap(r.mono) < frames {
		r.mono = make([]float32, frames)
	}
	r.mono = r.mono[:frames]
	r.source.Fill(r.mono)
	for i, s := range r.mono {
		u := math.Float32bits(s)
		binary.LittleEndian.PutUint32(p[i*8:], u)
		binary.LittleEndian.PutUint32(p[i*8+4:], u)
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

// Output plays a Source on the default audio device.
type Output struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// NewOutput creates a device player for source at the given sample rate.
// The process-wide audio context is created on first use and pinned to
// that rate.
func NewOutput(sampleRate int, source Source) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Play()  { o.player.Play() }
func (o *Output) Pause() { o.player.Pause() }

func (o *Output) IsPlaying() bool { return o.player.IsPlaying() }

// Position returns what the listener is hearing right now.
func (o *Output) Position() time.Duration { return o.player.Position() }

func (o *Output) Stop() error {
	o.player.Pause()
	o.player.Close()
	return o.reader.Close()
}
