package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/stt"
)

// STTSession is one live recognition stream.
type STTSession interface {
	SendAudio([]byte) error
	CloseSend() error
	Events() <-chan stt.Event
	Close() error
}

type STTProvider interface {
	NewSession(ctx context.Context, cfg stt.StreamConfig) (STTSession, error)
}

type STTProviderAdapter struct {
	Provider stt.Provider
}

func (a STTProviderAdapter) NewSession(ctx context.Context, cfg stt.StreamConfig) (STTSession, error) {
	if a.Provider == nil {
		return nil, fmt.Errorf("stt provider is nil")
	}
	s, err := a.Provider.NewStreamingSTT(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type channelState int

const (
	channelIdle channelState = iota
	channelOpening
	channelOpen
	channelClosed
)

func (s channelState) String() string {
	switch s {
	case channelIdle:
		return "idle"
	case channelOpening:
		return "opening"
	case channelOpen:
		return "open"
	case channelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// channelEvent is an stt event tagged with the handle generation that
// produced it.
type channelEvent struct {
	generation uint64
	event      stt.Event
}

const (
	defaultRetireGrace = 5 * time.Second
	maxRetired         = 4
)

type streamHandle struct {
	sess       STTSession
	cancel     context.CancelFunc
	generation uint64
	retired    chan struct{}
}

// RecognitionChannel owns at most one live STT stream at a time. All methods
// except the internal forwarders run on the session goroutine.
type RecognitionChannel struct {
	provider STTProvider
	parent   context.Context
	out      chan<- channelEvent
	logger   *slog.Logger

	cfg        stt.StreamConfig
	current    *streamHandle
	generation uint64
	state      channelState

	// retired lists recent generations whose streams were half-closed after
	// a write failure. Their transcripts are still delivered.
	retired     []uint64
	retireGrace time.Duration

	forwarders sync.WaitGroup
}

func newRecognitionChannel(parent context.Context, provider STTProvider, out chan<- channelEvent, logger *slog.Logger) *RecognitionChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecognitionChannel{
		provider:    provider,
		parent:      parent,
		out:         out,
		logger:      logger,
		retireGrace: defaultRetireGrace,
	}
}

// Open replaces any existing stream with a new one using cfg.
func (c *RecognitionChannel) Open(cfg stt.StreamConfig) error {
	c.Release()

	c.state = channelOpening
	c.generation++
	gen := c.generation

	ctx, cancel := context.WithCancel(c.parent)
	sess, err := c.provider.NewSession(ctx, cfg)
	if err != nil {
		cancel()
		c.state = channelClosed
		return fmt.Errorf("open recognition stream: %w", err)
	}

	h := &streamHandle{sess: sess, cancel: cancel, generation: gen, retired: make(chan struct{})}
	c.cfg = cfg
	c.current = h
	c.state = channelOpen

	c.forwarders.Add(1)
	go c.forward(ctx, h)

	c.logger.Debug("recognition stream opened", "generation", gen, "language", cfg.Language)
	return nil
}

// forward copies stream events to the session inbox. Once the stream is
// retired it keeps draining until the stream ends or the grace period runs
// out, then releases it.
func (c *RecognitionChannel) forward(ctx context.Context, h *streamHandle) {
	defer c.forwarders.Done()

	events := h.sess.Events()
	retired := h.retired
	var deadline <-chan time.Time
	defer func() {
		select {
		case <-h.retired:
			_ = h.sess.Close()
			h.cancel()
		default:
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case c.out <- channelEvent{generation: h.generation, event: ev}:
			case <-deadline:
				return
			case <-ctx.Done():
				return
			}
		case <-retired:
			retired = nil
			timer := time.NewTimer(c.retireGrace)
			defer timer.Stop()
			deadline = timer.C
		case <-deadline:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Write forwards one frame. It fails with ErrChannelNotWritable when there is
// no open stream; a send failure releases the stream.
func (c *RecognitionChannel) Write(frame []byte) error {
	if c.state != channelOpen || c.current == nil {
		return ErrChannelNotWritable
	}
	if err := c.current.sess.SendAudio(frame); err != nil {
		c.logger.Warn("recognition write failed", "generation", c.generation, "error", err)
		c.retire()
		return fmt.Errorf("%w: %v", ErrChannelNotWritable, err)
	}
	return nil
}

// retire half-closes the current stream without cancelling it, so results
// the backend already produced still arrive.
func (c *RecognitionChannel) retire() {
	h := c.current
	if h == nil {
		return
	}
	_ = h.sess.CloseSend()
	close(h.retired)
	c.retired = append(c.retired, h.generation)
	if len(c.retired) > maxRetired {
		c.retired = c.retired[len(c.retired)-maxRetired:]
	}
	c.current = nil
	c.state = channelClosed
}

// Accept filters an event from the session inbox. Error and end events
// release the current stream. A retired stream contributes transcripts only;
// events from streams replaced any other way are stale.
func (c *RecognitionChannel) Accept(ev channelEvent) (stt.Event, bool) {
	if c.current != nil && ev.generation == c.current.generation {
		switch ev.event.Kind {
		case stt.EventError, stt.EventEnd:
			c.Release()
		}
		return ev.event, true
	}
	if ev.event.Kind == stt.EventTranscript && slices.Contains(c.retired, ev.generation) {
		return ev.event, true
	}
	return stt.Event{}, false
}

// Release ends the current stream (end-of-audio first, then cancel). It is a
// no-op when nothing is open.
func (c *RecognitionChannel) Release() {
	if c.current == nil {
		if c.state != channelIdle {
			c.state = channelClosed
		}
		return
	}
	_ = c.current.sess.CloseSend()
	_ = c.current.sess.Close()
	c.current.cancel()
	c.current = nil
	c.state = channelClosed
}

func (c *RecognitionChannel) Writable() bool {
	return c.state == channelOpen && c.current != nil
}

func (c *RecognitionChannel) Config() stt.StreamConfig {
	return c.cfg
}

func (c *RecognitionChannel) State() channelState {
	return c.state
}

// Wait blocks until every forwarder goroutine has exited. Call after Release
// once the parent context is done; retired streams otherwise linger for the
// grace period.
func (c *RecognitionChannel) Wait() {
	c.forwarders.Wait()
}
