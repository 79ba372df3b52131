package stt

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recvItem struct {
	resp *speechpb.StreamingRecognizeResponse
	err  error
}

type fakeRecognizeStream struct {
	grpc.ClientStream

	mu         sync.Mutex
	sent       []*speechpb.StreamingRecognizeRequest
	closeSends int
	recv       chan recvItem
	ctx        context.Context
}

func (f *fakeRecognizeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeRecognizeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	select {
	case item, ok := <-f.recv:
		if !ok {
			return nil, io.EOF
		}
		return item.resp, item.err
	case <-f.ctx.Done():
		return nil, status.Error(codes.Canceled, "context canceled")
	}
}

func (f *fakeRecognizeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSends++
	return nil
}

func (f *fakeRecognizeStream) requests() []*speechpb.StreamingRecognizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*speechpb.StreamingRecognizeRequest, len(f.sent))
	copy(out, f.sent)
	return out
}

func newFakeProvider() (*GoogleProvider, *fakeRecognizeStream) {
	fake := &fakeRecognizeStream{recv: make(chan recvItem, 8)}
	p := &GoogleProvider{open: func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		fake.ctx = ctx
		return fake, nil
	}}
	return p, fake
}

func nextEvent(t *testing.T, s *StreamingSTT) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		return ev, ok
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}, false
	}
}

func TestGoogle_SendsStreamingConfigFirst(t *testing.T) {
	p, fake := newFakeProvider()
	s, err := p.NewStreamingSTT(context.Background(), StreamConfig{
		Language:             "en-US",
		Encoding:             "webm_opus",
		SampleRate:           48000,
		AutomaticPunctuation: true,
		InterimResults:       true,
	})
	if err != nil {
		t.Fatalf("NewStreamingSTT() error: %v", err)
	}
	defer s.Close()

	if err := s.SendAudio([]byte("chunk")); err != nil {
		t.Fatalf("SendAudio() error: %v", err)
	}

	reqs := fake.requests()
	if len(reqs) != 2 {
		t.Fatalf("len(requests)=%d, want 2", len(reqs))
	}
	cfg := reqs[0].GetStreamingConfig()
	if cfg == nil {
		t.Fatalf("first request must carry streaming config")
	}
	if !cfg.GetInterimResults() {
		t.Fatalf("expected interim results enabled")
	}
	rc := cfg.GetConfig()
	if rc.GetLanguageCode() != "en-US" || rc.GetSampleRateHertz() != 48000 {
		t.Fatalf("recognition config=%+v", rc)
	}
	if rc.GetEncoding() != speechpb.RecognitionConfig_WEBM_OPUS {
		t.Fatalf("encoding=%v, want WEBM_OPUS", rc.GetEncoding())
	}
	if !rc.GetEnableAutomaticPunctuation() {
		t.Fatalf("expected automatic punctuation")
	}
	if string(reqs[1].GetAudioContent()) != "chunk" {
		t.Fatalf("audio=%q", reqs[1].GetAudioContent())
	}
}

func TestGoogle_RejectsUnknownEncoding(t *testing.T) {
	p, _ := newFakeProvider()
	if _, err := p.NewStreamingSTT(context.Background(), StreamConfig{Language: "en-US", Encoding: "aiff"}); err == nil {
		t.Fatalf("expected encoding error")
	}
	if _, err := p.NewStreamingSTT(context.Background(), StreamConfig{}); err == nil {
		t.Fatalf("expected language error")
	}
}

func TestGoogle_EmitsTranscriptsThenEnd(t *testing.T) {
	p, fake := newFakeProvider()
	s, err := p.NewStreamingSTT(context.Background(), StreamConfig{Language: "en-US"})
	if err != nil {
		t.Fatalf("NewStreamingSTT() error: %v", err)
	}
	defer s.Close()

	fake.recv <- recvItem{resp: &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hel"}}},
		},
	}}
	fake.recv <- recvItem{resp: &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{IsFinal: true, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hello", Confidence: 0.9}}},
		},
	}}
	close(fake.recv)

	ev, _ := nextEvent(t, s)
	if ev.Kind != EventTranscript || ev.Delta.Text != "hel" || ev.Delta.IsFinal {
		t.Fatalf("event 1=%+v", ev)
	}
	ev, _ = nextEvent(t, s)
	if ev.Kind != EventTranscript || ev.Delta.Text != "hello" || !ev.Delta.IsFinal {
		t.Fatalf("event 2=%+v", ev)
	}
	ev, _ = nextEvent(t, s)
	if ev.Kind != EventEnd {
		t.Fatalf("event 3=%+v, want end", ev)
	}
	if _, ok := nextEvent(t, s); ok {
		t.Fatalf("expected events channel closed")
	}
}

func TestGoogle_EmitsErrorWithStatusDetails(t *testing.T) {
	p, fake := newFakeProvider()
	s, err := p.NewStreamingSTT(context.Background(), StreamConfig{Language: "en-US"})
	if err != nil {
		t.Fatalf("NewStreamingSTT() error: %v", err)
	}
	defer s.Close()

	fake.recv <- recvItem{err: status.Error(codes.OutOfRange, "Exceeded maximum allowed stream duration")}

	ev, _ := nextEvent(t, s)
	if ev.Kind != EventError {
		t.Fatalf("event=%+v, want error", ev)
	}
	code, details := ErrorDetails(ev.Err)
	if code != int(codes.OutOfRange) {
		t.Fatalf("code=%d, want %d", code, codes.OutOfRange)
	}
	if details != "Exceeded maximum allowed stream duration" {
		t.Fatalf("details=%q", details)
	}
}

func TestGoogle_CloseIsSilentAndIdempotent(t *testing.T) {
	p, fake := newFakeProvider()
	s, err := p.NewStreamingSTT(context.Background(), StreamConfig{Language: "en-US"})
	if err != nil {
		t.Fatalf("NewStreamingSTT() error: %v", err)
	}

	_ = s.Close()
	_ = s.Close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected receive loop to exit after Close")
	}
	for ev := range s.Events() {
		t.Fatalf("unexpected event after Close: %+v", ev)
	}
	if fake.closeSends != 1 {
		t.Fatalf("closeSends=%d, want 1", fake.closeSends)
	}
	if err := s.SendAudio([]byte("x")); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("SendAudio after close err=%v", err)
	}
}

func TestErrorDetails_PlainError(t *testing.T) {
	code, details := ErrorDetails(errors.New("boom"))
	if code != int(codes.Unknown) || details != "boom" {
		t.Fatalf("code=%d details=%q", code, details)
	}
}
