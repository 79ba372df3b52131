package session

// FrameWriter accepts one audio frame.
type FrameWriter interface {
	Write(frame []byte) error
}

// FrameWriterFunc adapts a function to FrameWriter.
type FrameWriterFunc func(frame []byte) error

func (f FrameWriterFunc) Write(frame []byte) error { return f(frame) }

// AudioQueueConfig bounds an AudioQueue. Zero values disable a bound.
type AudioQueueConfig struct {
	MinFrameBytes int
	MaxFrames     int
	MaxBytes      int
}

// AudioQueue is an ordered buffer of audio frames awaiting the recognition
// channel. It is owned by a single session goroutine and is not safe for
// concurrent use.
//
// When a bound would be exceeded the oldest frames are dropped.
type AudioQueue struct {
	cfg    AudioQueueConfig
	frames [][]byte
	bytes  int
}

func NewAudioQueue(cfg AudioQueueConfig) *AudioQueue {
	return &AudioQueue{cfg: cfg}
}

// Admit reports whether frame is large enough to be treated as audio.
func (q *AudioQueue) Admit(frame []byte) bool {
	return len(frame) > 0 && len(frame) >= q.cfg.MinFrameBytes
}

// Enqueue appends frame and returns how many old frames were evicted to
// make room for it.
func (q *AudioQueue) Enqueue(frame []byte) (dropped int) {
	for len(q.frames) > 0 && q.overflows(len(frame)) {
		q.popFront()
		dropped++
	}
	q.frames = append(q.frames, frame)
	q.bytes += len(frame)
	return dropped
}

func (q *AudioQueue) overflows(incoming int) bool {
	if q.cfg.MaxFrames > 0 && len(q.frames)+1 > q.cfg.MaxFrames {
		return true
	}
	return q.cfg.MaxBytes > 0 && q.bytes+incoming > q.cfg.MaxBytes
}

// Drain writes frames in order until the queue is empty or w fails. A frame
// that fails is put back at the front and draining stops.
func (q *AudioQueue) Drain(w FrameWriter) (written int, err error) {
	for len(q.frames) > 0 {
		frame := q.popFront()
		if err := w.Write(frame); err != nil {
			q.pushFront(frame)
			return written, err
		}
		written++
	}
	return written, nil
}

func (q *AudioQueue) Len() int   { return len(q.frames) }
func (q *AudioQueue) Bytes() int { return q.bytes }

// Clear drops all frames and returns how many were discarded.
func (q *AudioQueue) Clear() int {
	n := len(q.frames)
	q.frames = nil
	q.bytes = 0
	return n
}

func (q *AudioQueue) popFront() []byte {
	frame := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	q.bytes -= len(frame)
	if len(q.frames) == 0 {
		q.frames = nil
	}
	return frame
}

func (q *AudioQueue) pushFront(frame []byte) {
	q.frames = append(q.frames, nil)
	copy(q.frames[1:], q.frames)
	q.frames[0] = frame
	q.bytes += len(frame)
}
