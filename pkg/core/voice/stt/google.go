package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type openStreamFunc func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// GoogleProvider implements Provider on Google Cloud Speech-to-Text v1
// streaming recognition.
type GoogleProvider struct {
	client *speech.Client
	open   openStreamFunc
}

// NewGoogle dials the Speech API. The caller must Close the provider.
func NewGoogle(ctx context.Context, opts ...option.ClientOption) (*GoogleProvider, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &GoogleProvider{
		client: client,
		open: func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
			return client.StreamingRecognize(ctx)
		},
	}, nil
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// NewStreamingSTT opens a StreamingRecognize call and sends the initial
// streaming config. Canceling ctx releases the call.
func (p *GoogleProvider) NewStreamingSTT(ctx context.Context, cfg StreamConfig) (*StreamingSTT, error) {
	if p == nil || p.open == nil {
		return nil, errors.New("google stt provider is not initialized")
	}
	recognition, err := recognitionConfig(cfg)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := p.open(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         recognition,
				InterimResults: cfg.InterimResults,
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &StreamingSTT{
		stream: stream,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		ctx:    streamCtx,
		cancel: cancel,
	}
	go s.recvLoop()
	return s, nil
}

func recognitionConfig(cfg StreamConfig) (*speechpb.RecognitionConfig, error) {
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		return nil, errors.New("stt language is required")
	}
	encodingName := strings.ToUpper(strings.TrimSpace(cfg.Encoding))
	if encodingName == "" {
		encodingName = "WEBM_OPUS"
	}
	encoding, ok := speechpb.RecognitionConfig_AudioEncoding_value[encodingName]
	if !ok {
		return nil, fmt.Errorf("unsupported stt encoding %q", cfg.Encoding)
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_AudioEncoding(encoding),
		SampleRateHertz:            int32(sampleRate),
		LanguageCode:               language,
		EnableAutomaticPunctuation: cfg.AutomaticPunctuation,
		Model:                      strings.TrimSpace(cfg.Model),
	}, nil
}

// StreamingSTT is one live recognition call.
type StreamingSTT struct {
	stream    speechpb.Speech_StreamingRecognizeClient
	events    chan Event
	done      chan struct{}
	closed    atomic.Bool
	halfDone  atomic.Bool
	sendMu    sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *StreamingSTT) recvLoop() {
	defer func() {
		close(s.events)
		close(s.done)
	}()

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.emit(Event{Kind: EventEnd})
				return
			}
			if s.ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			s.emit(Event{Kind: EventError, Err: err})
			return
		}
		if st := resp.GetError(); st != nil && st.GetCode() != int32(codes.OK) {
			s.emit(Event{Kind: EventError, Err: status.ErrorProto(st)})
			return
		}
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			s.emit(Event{Kind: EventTranscript, Delta: TranscriptDelta{
				Text:       alts[0].GetTranscript(),
				IsFinal:    result.GetIsFinal(),
				Stability:  result.GetStability(),
				Confidence: alts[0].GetConfidence(),
			}})
		}
	}
}

func (s *StreamingSTT) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// SendAudio forwards one encoded audio chunk.
func (s *StreamingSTT) SendAudio(data []byte) error {
	if s.closed.Load() || s.halfDone.Load() {
		return ErrStreamClosed
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	})
}

// CloseSend signals end of audio; the backend finishes pending results and
// then ends the stream.
func (s *StreamingSTT) CloseSend() error {
	if s.halfDone.Swap(true) {
		return nil
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.CloseSend()
}

// Events returns the channel of stream events. It is closed when the
// receive loop exits.
func (s *StreamingSTT) Events() <-chan Event {
	return s.events
}

// Done returns a channel that's closed when the stream ends.
func (s *StreamingSTT) Done() <-chan struct{} {
	return s.done
}

// Close ends the stream gracefully and then releases it.
func (s *StreamingSTT) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.CloseSend()
		s.cancel()
	})
	return err
}

// ErrorDetails extracts the gRPC status code and message from a stream
// error. Non-status errors report codes.Unknown.
func ErrorDetails(err error) (code int, details string) {
	if err == nil {
		return int(codes.OK), ""
	}
	if st, ok := status.FromError(err); ok {
		return int(st.Code()), st.Message()
	}
	return int(codes.Unknown), err.Error()
}
