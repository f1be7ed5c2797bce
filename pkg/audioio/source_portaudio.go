//go:build portaudio

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portAudioAvailable = true

// PortAudioSource captures from the default PortAudio input device.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	buffer   []int16
	running  bool
	closed   bool
	streamCh chan AudioChunk
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioSource{
		cfg:      cfg,
		logger:   logger,
		buffer:   make([]int16, cfg.BufferSize()*cfg.Channels),
		streamCh: make(chan AudioChunk, 16),
	}, nil
}

// Start opens the default input stream and begins capture.
func (p *PortAudioSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(
		p.cfg.Channels,
		0,
		float64(p.cfg.SampleRate),
		p.cfg.BufferSize(),
		p.buffer,
	)
	if err != nil {
		return fmt.Errorf("portaudio open: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio start: %w", err)
	}

	p.stream = stream
	p.running = true
	p.streamCh = make(chan AudioChunk, 16)
	p.done = make(chan struct{})

	go p.captureLoop(ctx, stream, p.streamCh, p.done)

	p.logger.Info("portaudio source started",
		"sample_rate", p.cfg.SampleRate,
		"frames_per_buffer", p.cfg.BufferSize(),
	)
	return nil
}

func (p *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, out chan AudioChunk, done chan struct{}) {
	defer close(done)
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if !running {
			return
		}

		// Read blocks until one buffer is captured.
		if err := stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				p.overruns.Add(1)
				continue
			}
			p.logger.Warn("portaudio read failed", "error", err)
			return
		}

		samples := make([]int16, len(p.buffer))
		copy(samples, p.buffer)
		chunk := AudioChunk{Samples: samples, SampleRate: p.cfg.SampleRate, Channels: p.cfg.Channels}

		select {
		case out <- chunk:
			p.chunksRead.Add(1)
			p.samplesRead.Add(int64(len(samples)))
		default:
			p.overruns.Add(1)
		}
	}
}

// Stop halts capture and closes the stream.
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stream := p.stream
	p.stream = nil
	done := p.done
	p.mu.Unlock()

	// Stopping the stream unblocks a pending Read.
	err := stream.Stop()
	<-done
	stream.Close()

	p.logger.Info("portaudio source stopped", "overruns", p.overruns.Load())
	return err
}

// Read reads the next audio chunk.
func (p *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	ch := p.Stream()
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (p *PortAudioSource) Stream() <-chan AudioChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCh
}

func (p *PortAudioSource) Config() Config { return p.cfg }

// Name returns "portaudio".
func (p *PortAudioSource) Name() string { return string(BackendPortAudio) }

// Close stops capture and terminates PortAudio.
func (p *PortAudioSource) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.Stop()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// Stats returns source statistics.
func (p *PortAudioSource) Stats() SourceStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return SourceStats{
		ChunksRead:  p.chunksRead.Load(),
		SamplesRead: p.samplesRead.Load(),
		Overruns:    p.overruns.Load(),
		Running:     running,
		Backend:     string(BackendPortAudio),
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)
