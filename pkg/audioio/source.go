package audioio

import (
	"context"
	"io"
)

// AudioChunk is one buffer of captured audio.
type AudioChunk struct {
	// Samples contains interleaved PCM16 samples.
	Samples []int16

	SampleRate int
	Channels   int
}

// Bytes returns the samples as PCM16 little-endian bytes.
func (c *AudioChunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// FromBytes populates the chunk from PCM16 little-endian bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = make([]int16, len(data)/2)
	for i := range c.Samples {
		c.Samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
}

// Duration returns the duration of this chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	Start(ctx context.Context) error

	// Stop halts audio capture. It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next chunk, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns a channel of chunks, closed when the source stops.
	Stream() <-chan AudioChunk

	Config() Config

	// Name returns the backend name ("portaudio", "mock").
	Name() string

	// Close releases all resources. A closed source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// PCM converts a started source's stream into PCM16LE byte slices.
// The returned channel closes when the source stops or ctx is done.
func PCM(ctx context.Context, src Source) <-chan []byte {
	out := make(chan []byte, 4)
	in := src.Stream()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- chunk.Bytes():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
