package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/core/voice/stt"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/gateway/live/protocol"
	"github.com/Malya-Khuntia/Realtime-Video-Subtitle-Voice-Translator-with-multiple-Language-using-GCP-Tools/pkg/language"
	"github.com/gorilla/websocket"
)

const (
	outboundPriorityQueueSize = 8
	inboundQueueSize          = 64
	channelEventQueueSize     = 32

	// defaultEnqueueWait bounds how long a final result or error waits for
	// outbound queue space when no write timeout is configured.
	defaultEnqueueWait = time.Second
)

// Conn is the subset of *websocket.Conn used by a session.
type Conn interface {
	wsWriter
	ReadMessage() (messageType int, p []byte, err error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// State is the controller state of a session.
type State int32

const (
	StateAwaitingConfig State = iota
	StateStreaming
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateStreaming:
		return "streaming"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// MaxAudioFrameBytes is the websocket read limit.
	MaxAudioFrameBytes  int64
	MinAudioFrameBytes  int
	AudioQueueMaxFrames int
	AudioQueueMaxBytes  int

	ReinitBurst    int
	ReinitInterval time.Duration

	// ConfigTimeout closes a session that never sends a config. Zero disables.
	ConfigTimeout time.Duration
	// EnrichTimeout bounds translate plus synthesize for one final.
	EnrichTimeout time.Duration

	OutboundQueueSize int

	STTEncoding   string
	STTSampleRate int
	STTModel      string

	SpeakingRate float64
	AudioFormat  string
}

type Dependencies struct {
	Conn        Conn
	Logger      *slog.Logger
	Languages   *language.Registry
	STT         STTProvider
	Translator  Translator
	Synthesizer Synthesizer
	Observer    Observer
	SessionID   string
	Config      Config
	Now         func() time.Time
}

// LiveSession relays one client's audio to a recognition stream and sends
// back translated results. Run owns all mutable state.
type LiveSession struct {
	conn      Conn
	logger    *slog.Logger
	languages *language.Registry
	observer  Observer
	sessionID string
	cfg       Config
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	state       atomic.Int32
	closed      atomic.Bool
	closeCode   atomic.Int32
	closeReason atomic.Value // string

	queue    *AudioQueue
	channel  *RecognitionChannel
	events   chan channelEvent
	limiter  *reinitLimiter
	enricher *Enricher

	pair  *LanguagePair
	acked bool

	pending    []enrichJob
	inflight   bool
	enrichDone chan EnrichmentResult
	enrichWG   sync.WaitGroup
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

type enrichJob struct {
	delta stt.TranscriptDelta
	pair  LanguagePair
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.STT == nil {
		return nil, fmt.Errorf("stt provider is required")
	}
	if deps.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if deps.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if deps.Languages == nil || deps.Languages.Len() == 0 {
		return nil, fmt.Errorf("language registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.MinAudioFrameBytes < 0 {
		deps.Config.MinAudioFrameBytes = 0
	}
	if deps.Config.SpeakingRate <= 0 {
		deps.Config.SpeakingRate = 1.0
	}
	if deps.Config.AudioFormat == "" {
		deps.Config.AudioFormat = "mp3"
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	observer := observerOrNoop(deps.Observer)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan channelEvent, channelEventQueueSize)
	logger := deps.Logger
	if deps.SessionID != "" {
		logger = logger.With("session_id", deps.SessionID)
	}

	s := &LiveSession{
		conn:             deps.Conn,
		logger:           logger,
		languages:        deps.Languages,
		observer:         observer,
		sessionID:        deps.SessionID,
		cfg:              deps.Config,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, max(1, min(deps.Config.OutboundQueueSize, outboundPriorityQueueSize))),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		queue: NewAudioQueue(AudioQueueConfig{
			MinFrameBytes: deps.Config.MinAudioFrameBytes,
			MaxFrames:     deps.Config.AudioQueueMaxFrames,
			MaxBytes:      deps.Config.AudioQueueMaxBytes,
		}),
		events:  events,
		channel: newRecognitionChannel(ctx, deps.STT, events, logger),
		limiter: newReinitLimiter(deps.Now, deps.Config.ReinitBurst, deps.Config.ReinitInterval),
		enricher: &Enricher{
			Translator:   deps.Translator,
			Synthesizer:  deps.Synthesizer,
			SpeakingRate: deps.Config.SpeakingRate,
			AudioFormat:  deps.Config.AudioFormat,
			Timeout:      deps.Config.EnrichTimeout,
			Observer:     observer,
		},
		enrichDone: make(chan EnrichmentResult, 1),
	}
	s.closeCode.Store(websocket.CloseNormalClosure)
	s.closeReason.Store("")
	return s, nil
}

func (s *LiveSession) ID() string {
	return s.sessionID
}

// State reports the controller state. Safe to call from any goroutine.
func (s *LiveSession) State() State {
	return State(s.state.Load())
}

func (s *LiveSession) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.Debug("session state changed", "from", prev.String(), "to", st.String())
	}
}

func (s *LiveSession) Run() error {
	defer s.cancel()

	if s.cfg.MaxAudioFrameBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxAudioFrameBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	start := s.now()
	s.observer.SessionStarted()
	reason := "client_disconnect"
	defer func() {
		s.observer.SessionEnded(reason, s.now().Sub(start))
	}()

	readCh := make(chan inboundFrame, inboundQueueSize)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:          s.conn,
			ctx:         s.ctx,
			cfg:         s.cfg,
			priority:    s.outboundPriority,
			normal:      s.outboundNormal,
			closeStatus: s.closeStatus,
			written:     s.observer.MessageSent,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	defer s.enrichWG.Wait()
	defer s.channel.Wait()

	flushAndClose := func() {
		s.closeSession()
		wait := 100 * time.Millisecond
		if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
			wait = s.cfg.WriteTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-writerErrCh:
		case <-timer.C:
		}
	}

	var configTimeout <-chan time.Time
	if s.cfg.ConfigTimeout > 0 {
		timer := time.NewTimer(s.cfg.ConfigTimeout)
		defer timer.Stop()
		configTimeout = timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			reason = "canceled"
			flushAndClose()
			return nil

		case <-configTimeout:
			configTimeout = nil
			if s.State() != StateAwaitingConfig {
				continue
			}
			s.logger.Warn("no language configuration received", "timeout", s.cfg.ConfigTimeout)
			reason = "config_timeout"
			s.fail(websocket.ClosePolicyViolation, "No language configuration received.")
			flushAndClose()
			return nil

		case frame, ok := <-readCh:
			if !ok {
				flushAndClose()
				return nil
			}
			if frame.err != nil {
				canceled := s.ctx.Err() != nil
				flushAndClose()
				if canceled {
					reason = "canceled"
					return nil
				}
				if isDisconnect(frame.err) {
					s.logger.Debug("client disconnected", "error", frame.err)
					return nil
				}
				reason = "read_error"
				s.logger.Warn("websocket read failed", "error", frame.err)
				return fmt.Errorf("read client frame: %w", frame.err)
			}
			s.handleInbound(frame.data)
			if s.State() == StateClosed {
				reason = "rejected"
				flushAndClose()
				return nil
			}

		case ev := <-s.events:
			s.handleChannelEvent(ev)

		case res := <-s.enrichDone:
			s.inflight = false
			if s.ctx.Err() != nil {
				continue
			}
			s.sendResult(res)
			s.pumpEnrichment()

		case err, ok := <-writerErrCh:
			if !ok {
				writerErrCh = nil
				continue
			}
			if s.ctx.Err() != nil {
				reason = "canceled"
			}
			s.closeSession()
			if err != nil {
				reason = "write_error"
				s.logger.Warn("websocket write failed", "error", err)
				return fmt.Errorf("write client frame: %w", err)
			}
			return nil
		}
	}
}

func isDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, ErrClientDisconnect) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func (s *LiveSession) handleInbound(data []byte) {
	if protocol.LooksLikeJSON(data) {
		if msg, err := protocol.DecodeClientMessage(data); err == nil {
			if cfg, ok := msg.(protocol.ClientConfig); ok {
				s.handleConfig(cfg)
				return
			}
		}
	}
	s.handleAudio(data)
}

func (s *LiveSession) handleConfig(msg protocol.ClientConfig) {
	if err := protocol.ValidateConfig(msg); err != nil {
		s.rejectConfig(msg, err)
		return
	}
	source, err := s.languages.Resolve(msg.SourceLang)
	if err != nil {
		s.rejectConfig(msg, err)
		return
	}
	target, err := s.languages.Resolve(msg.TargetLang)
	if err != nil {
		s.rejectConfig(msg, err)
		return
	}

	reason := "config"
	if s.pair != nil {
		reason = "reconfigure"
	}
	s.pair = &LanguagePair{Source: source, Target: target}
	s.acked = false
	s.logger.Info("session configured",
		"source", source.Key,
		"target", target.Key,
		"reason", reason,
	)

	if err := s.openChannel(reason); err != nil {
		s.logger.Error("failed to open recognition stream", "error", err)
		s.observer.ChannelError(channelOpenFailureCode(err))
		s.sendError(fmt.Sprintf("Failed to start speech recognition: %v", err))
		s.setState(StateErrored)
		return
	}
	s.setState(StateStreaming)
	s.ack()
	s.flush()
}

func (s *LiveSession) rejectConfig(msg protocol.ClientConfig, err error) {
	s.logger.Warn("invalid language selection",
		"source", msg.SourceLang,
		"target", msg.TargetLang,
		"error", err,
	)
	s.fail(websocket.ClosePolicyViolation, fmt.Sprintf("Invalid lang codes: Src='%s', Tgt='%s'", msg.SourceLang, msg.TargetLang))
}

func channelOpenFailureCode(err error) int {
	code, _ := stt.ErrorDetails(err)
	return code
}

func (s *LiveSession) ack() {
	if s.acked || s.pair == nil {
		return
	}
	s.acked = true
	_ = s.sendJSON("config_ack", protocol.ServerConfigAck{
		Type:   protocol.TypeConfigAck,
		Source: s.pair.Source.Name,
		Target: s.pair.Target.Name,
	})
}

func (s *LiveSession) handleAudio(data []byte) {
	if !s.queue.Admit(data) {
		s.observer.FramesDropped("undersized", 1)
		return
	}
	if dropped := s.queue.Enqueue(data); dropped > 0 {
		s.observer.FramesDropped("queue_overflow", dropped)
		s.logger.Warn("audio queue full, dropped oldest frames",
			"dropped", dropped,
			"queued_frames", s.queue.Len(),
			"queued_bytes", s.queue.Bytes(),
		)
	}

	switch s.State() {
	case StateStreaming:
		s.flush()
	case StateErrored:
		if s.reinit("audio_retry") {
			s.setState(StateStreaming)
			s.ack()
			s.flush()
		}
	}
}

// flush drains the queue into the channel. When the channel cannot take a
// frame it is reopened at most once and drained once more.
func (s *LiveSession) flush() {
	if s.State() != StateStreaming {
		return
	}
	err := s.drain()
	if err == nil || !errors.Is(err, ErrChannelNotWritable) {
		return
	}
	if !s.reinit("write_failure") {
		return
	}
	_ = s.drain()
}

func (s *LiveSession) drain() error {
	before := s.queue.Bytes()
	n, err := s.queue.Drain(s.channel)
	if n > 0 {
		s.observer.FramesWritten(n, before-s.queue.Bytes())
	}
	return err
}

func (s *LiveSession) openChannel(reason string) error {
	if s.pair == nil {
		return errors.New("no language configuration")
	}
	err := s.channel.Open(stt.StreamConfig{
		Language:             s.pair.Source.SpeechCode,
		Encoding:             s.cfg.STTEncoding,
		SampleRate:           s.cfg.STTSampleRate,
		Model:                s.cfg.STTModel,
		AutomaticPunctuation: true,
		InterimResults:       true,
	})
	if err != nil {
		return err
	}
	s.observer.ChannelOpened(reason)
	return nil
}

// reinit reopens the channel with the current configuration. The reinit
// limiter applies; explicit configs bypass it.
func (s *LiveSession) reinit(reason string) bool {
	if s.pair == nil {
		return false
	}
	if !s.limiter.Allow() {
		s.logger.Debug("recognition reinit deferred",
			"reason", reason,
			"retry_after", s.limiter.RetryAfter(),
		)
		return false
	}
	if err := s.openChannel(reason); err != nil {
		s.logger.Warn("recognition reinit failed", "reason", reason, "error", err)
		return false
	}
	s.logger.Info("recognition stream reinitialized", "reason", reason)
	return true
}

func (s *LiveSession) handleChannelEvent(ev channelEvent) {
	event, ok := s.channel.Accept(ev)
	if !ok || s.State() == StateClosed {
		return
	}
	switch event.Kind {
	case stt.EventTranscript:
		s.enqueueEnrichment(event.Delta)
	case stt.EventError:
		chErr := newChannelError(event.Err)
		s.logger.Error("speech recognition error", "code", chErr.Code, "details", chErr.Details)
		s.observer.ChannelError(chErr.Code)
		s.setState(StateErrored)
		s.sendError(chErr.Error())
	case stt.EventEnd:
		s.logger.Debug("recognition stream ended")
		if s.State() == StateStreaming && s.reinit("stream_end") {
			s.flush()
		}
	}
}

func (s *LiveSession) enqueueEnrichment(delta stt.TranscriptDelta) {
	if s.pair == nil {
		return
	}
	job := enrichJob{delta: delta, pair: *s.pair}
	// Consecutive interims waiting behind a final collapse to the newest.
	if n := len(s.pending); !delta.IsFinal && n > 0 && !s.pending[n-1].delta.IsFinal {
		s.pending[n-1] = job
	} else {
		s.pending = append(s.pending, job)
	}
	s.pumpEnrichment()
}

// pumpEnrichment runs queued jobs in order. Jobs that need no remote call
// are handled inline; at most one remote job is in flight.
func (s *LiveSession) pumpEnrichment() {
	for !s.inflight && len(s.pending) > 0 {
		job := s.pending[0]
		s.pending[0] = enrichJob{}
		s.pending = s.pending[1:]

		if !needsRemote(job.delta) {
			if res, ok := s.enricher.Enrich(s.ctx, job.delta, job.pair); ok {
				s.sendResult(res)
			}
			continue
		}

		s.inflight = true
		s.enrichWG.Add(1)
		go func(job enrichJob) {
			defer s.enrichWG.Done()
			res, _ := s.enricher.Enrich(s.ctx, job.delta, job.pair)
			select {
			case s.enrichDone <- res:
			case <-s.ctx.Done():
			}
		}(job)
	}
}

func (s *LiveSession) sendResult(res EnrichmentResult) {
	if res.Err != nil {
		s.logger.Warn("enrichment failed", "error", res.Err)
	}
	msg := protocol.NewServerResult(res.Transcript, res.IsFinal, res.Translation, res.Audio)
	var err error
	if res.IsFinal {
		err = s.sendJSONWait("result", msg)
	} else {
		err = s.sendJSON("result", msg)
	}
	if err != nil {
		if errors.Is(err, errBackpressure) {
			s.observer.FramesDropped("outbound_backpressure", 1)
			s.logger.Warn("outbound queue full, result dropped", "is_final", res.IsFinal)
		}
	}
}

// fail sends a final error ahead of anything still queued and closes the
// session.
func (s *LiveSession) fail(code int, message string) {
	_ = s.sendJSONPriority("error", protocol.ServerError{Error: message})
	s.closeCode.Store(int32(code))
	s.closeReason.Store(truncateCloseReason(message))
	s.closeSession()
}

func truncateCloseReason(reason string) string {
	// Control frame payloads are limited to 125 bytes, two of which hold the code.
	const maxReason = 123
	if len(reason) <= maxReason {
		return reason
	}
	return reason[:maxReason]
}

func (s *LiveSession) closeStatus() (int, string) {
	reason, _ := s.closeReason.Load().(string)
	return int(s.closeCode.Load()), reason
}

// closeSession moves to Closed. The channel is released once, the queue and
// configuration are dropped, and in-flight enrichment is cancelled.
func (s *LiveSession) closeSession() {
	if s.State() == StateClosed {
		return
	}
	s.setState(StateClosed)
	s.closed.Store(true)
	s.cancel()
	s.channel.Release()
	s.queue.Clear()
	s.pair = nil
	s.pending = nil
}

// sendError reports a non-fatal error in order with results already queued.
func (s *LiveSession) sendError(message string) error {
	return s.sendJSONWait("error", protocol.ServerError{Error: message})
}

func (s *LiveSession) sendWarning(code, message string) error {
	return s.sendJSON("warning", protocol.ServerWarning{Type: protocol.TypeWarning, Code: code, Message: message})
}

func (s *LiveSession) sendJSON(kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{kind: kind, payload: payload})
}

// sendJSONWait is sendJSON for messages that must not be dropped on a
// momentary burst. It blocks the session for at most one write timeout.
func (s *LiveSession) sendJSONWait(kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wait := s.cfg.WriteTimeout
	if wait <= 0 {
		wait = defaultEnqueueWait
	}
	return s.enqueueNormalWait(outboundFrame{kind: kind, payload: payload}, wait)
}

func (s *LiveSession) sendJSONPriority(kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueuePriority(outboundFrame{kind: kind, payload: payload})
}

func (s *LiveSession) enqueueNormal(frame outboundFrame) error {
	if s.closed.Load() {
		return nil
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) enqueueNormalWait(frame outboundFrame, wait time.Duration) error {
	if s.closed.Load() {
		return nil
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.outboundNormal <- frame:
		return nil
	case <-timer.C:
		return errBackpressure
	case <-s.ctx.Done():
		return nil
	}
}

func (s *LiveSession) enqueuePriority(frame outboundFrame) error {
	if s.closed.Load() {
		return nil
	}
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

// Cancel ends the session from another goroutine.
func (s *LiveSession) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// SendWarning queues a warning for the client, e.g. before a server drain.
func (s *LiveSession) SendWarning(code, message string) error {
	if s == nil {
		return nil
	}
	return s.sendWarning(code, message)
}
