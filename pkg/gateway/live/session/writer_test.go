package session

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordedWrite struct {
	messageType int
	data        string
}

type fakeWSWriter struct {
	mu     sync.Mutex
	writes []recordedWrite
}

func (f *fakeWSWriter) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWSWriter) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, recordedWrite{messageType: messageType, data: string(data)})
	return nil
}

func (f *fakeWSWriter) WriteControl(messageType int, data []byte, deadline time.Time) error {
	_ = deadline
	return f.WriteMessage(messageType, data)
}

func (f *fakeWSWriter) Close() error { return nil }

func (f *fakeWSWriter) snapshot() []recordedWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func TestOutboundWriter_PriorityBeatsNormal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	priority := make(chan outboundFrame, 1)
	normal := make(chan outboundFrame, 1)

	normal <- outboundFrame{kind: "result", payload: []byte(`{"transcription":"hello","isFinal":false,"translation":"Translating...","synthesizedAudio":null}`)}
	priority <- outboundFrame{kind: "error", payload: []byte(`{"error":"Speech API error (code 11): timeout"}`)}
	close(priority)
	close(normal)

	ws := &fakeWSWriter{}
	w := outboundWriter{
		ws:       ws,
		ctx:      ctx,
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: priority,
		normal:   normal,
	}

	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	writes := ws.snapshot()
	if len(writes) != 2 {
		t.Fatalf("writes=%d, want 2", len(writes))
	}
	if !strings.Contains(writes[0].data, `"error"`) {
		t.Fatalf("first write was not the error: %q", writes[0].data)
	}
	if !strings.Contains(writes[1].data, `"transcription":"hello"`) {
		t.Fatalf("second write was not the result: %q", writes[1].data)
	}
	for _, wr := range writes {
		if wr.messageType != websocket.TextMessage {
			t.Fatalf("messageType=%d, want text", wr.messageType)
		}
	}
}

func TestOutboundWriter_NormalFramesKeepOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	normal := make(chan outboundFrame, 3)
	for _, text := range []string{"one", "two", "three"} {
		normal <- outboundFrame{kind: "result", payload: []byte(`{"transcription":"` + text + `"}`)}
	}
	close(normal)
	priority := make(chan outboundFrame)
	close(priority)

	var kinds []string
	ws := &fakeWSWriter{}
	w := outboundWriter{
		ws:       ws,
		ctx:      ctx,
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: priority,
		normal:   normal,
		written:  func(kind string) { kinds = append(kinds, kind) },
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	writes := ws.snapshot()
	if len(writes) != 3 {
		t.Fatalf("writes=%d, want 3", len(writes))
	}
	for i, want := range []string{"one", "two", "three"} {
		if !strings.Contains(writes[i].data, want) {
			t.Fatalf("write %d=%q, want %q", i, writes[i].data, want)
		}
	}
	if len(kinds) != 3 || kinds[0] != "result" {
		t.Fatalf("written callbacks=%v", kinds)
	}
}

func TestOutboundWriter_SkipsEmptyPayload(t *testing.T) {
	normal := make(chan outboundFrame, 1)
	normal <- outboundFrame{kind: "result"}
	close(normal)
	priority := make(chan outboundFrame)
	close(priority)

	ws := &fakeWSWriter{}
	w := outboundWriter{
		ws:       ws,
		ctx:      context.Background(),
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: priority,
		normal:   normal,
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if writes := ws.snapshot(); len(writes) != 0 {
		t.Fatalf("writes=%+v, want none", writes)
	}
}

func TestOutboundWriter_FlushesPriorityOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	priority := make(chan outboundFrame, 1)
	normal := make(chan outboundFrame, 1)

	priority <- outboundFrame{kind: "error", payload: []byte(`{"error":"Invalid lang codes: Src='xx', Tgt='hi-IN'"}`)}

	ws := &fakeWSWriter{}
	w := outboundWriter{
		ws:       ws,
		ctx:      ctx,
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: priority,
		normal:   normal,
		closeStatus: func() (int, string) {
			return websocket.ClosePolicyViolation, "invalid language"
		},
	}

	cancel()
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	writes := ws.snapshot()
	if len(writes) != 2 {
		t.Fatalf("writes=%+v, want error then close", writes)
	}
	if !strings.Contains(writes[0].data, "Invalid lang codes") {
		t.Fatalf("expected error to flush on shutdown, got %q", writes[0].data)
	}
	if writes[1].messageType != websocket.CloseMessage {
		t.Fatalf("last write type=%d, want close", writes[1].messageType)
	}
	if code := binary.BigEndian.Uint16([]byte(writes[1].data[:2])); code != websocket.ClosePolicyViolation {
		t.Fatalf("close code=%d, want %d", code, websocket.ClosePolicyViolation)
	}
	if !strings.HasSuffix(writes[1].data, "invalid language") {
		t.Fatalf("close reason=%q", writes[1].data[2:])
	}
}

func TestOutboundWriter_DefaultCloseIsNormal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ws := &fakeWSWriter{}
	w := outboundWriter{
		ws:       ws,
		ctx:      ctx,
		cfg:      Config{PingInterval: time.Hour, WriteTimeout: time.Second},
		priority: make(chan outboundFrame),
		normal:   make(chan outboundFrame),
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	writes := ws.snapshot()
	if len(writes) != 1 || writes[0].messageType != websocket.CloseMessage {
		t.Fatalf("writes=%+v, want a single close frame", writes)
	}
	if code := binary.BigEndian.Uint16([]byte(writes[0].data[:2])); code != websocket.CloseNormalClosure {
		t.Fatalf("close code=%d", code)
	}
}
