package audio

import (
	"fmt"
	"time"
)

// DefaultFrameBytes is the flush threshold for the rolling buffer:
// 2048 samples, 128ms of 16kHz mono PCM16.
const DefaultFrameBytes = 4096

// Frame is a fixed-size slice of mono PCM16 audio at the target format.
type Frame struct {
	// Seq increases by one for every frame a framer emits, starting at 1.
	Seq uint64
	// CapturedAt is the capture time of the frame's first sample.
	CapturedAt time.Time
	// Data holds little-endian PCM16 samples. It is owned by the receiver.
	Data []byte
	// Partial marks the final short frame flushed when capture ends.
	Partial bool
}

// Duration returns the playback duration of the frame in format f.
func (fr Frame) Duration(f Format) time.Duration {
	return f.Duration(len(fr.Data))
}

// Framer accumulates PCM into a rolling buffer and emits fixed-size frames once
// the buffer reaches the threshold. The remainder carries over to the next
// Write, so no sample is dropped or duplicated at a flush boundary.
//
// A Framer is not safe for concurrent use.
type Framer struct {
	format     Format
	frameBytes int
	buf        []byte
	bufStart   time.Time
	seq        uint64
}

// NewFramer creates a framer emitting frames of frameBytes, rounded down to a
// whole sample.
func NewFramer(format Format, frameBytes int) (*Framer, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid audio format %+v", format)
	}
	if bs := format.BytesPerSample(); frameBytes > 0 {
		frameBytes -= frameBytes % bs
	}
	if frameBytes <= 0 {
		return nil, fmt.Errorf("frame size must be positive")
	}
	return &Framer{
		format:     format,
		frameBytes: frameBytes,
		buf:        make([]byte, 0, frameBytes*2),
	}, nil
}

// Write appends pcm captured at capturedAt and returns every full frame now available.
func (f *Framer) Write(pcm []byte, capturedAt time.Time) []Frame {
	if len(pcm) == 0 {
		return nil
	}
	if len(f.buf) == 0 {
		f.bufStart = capturedAt
	}
	f.buf = append(f.buf, pcm...)

	var frames []Frame
	for len(f.buf) >= f.frameBytes {
		data := make([]byte, f.frameBytes)
		copy(data, f.buf[:f.frameBytes])
		frames = append(frames, f.next(data, false))
		f.bufStart = f.bufStart.Add(f.format.Duration(f.frameBytes))

		n := copy(f.buf, f.buf[f.frameBytes:])
		f.buf = f.buf[:n]
	}
	return frames
}

// Flush emits the carried-over remainder as a partial frame. It returns false
// when nothing is pending.
func (f *Framer) Flush() (Frame, bool) {
	if len(f.buf) == 0 {
		return Frame{}, false
	}
	data := make([]byte, len(f.buf))
	copy(data, f.buf)
	f.buf = f.buf[:0]
	return f.next(data, true), true
}

// Pending returns the number of buffered bytes not yet emitted.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Seq returns the sequence number of the last emitted frame.
func (f *Framer) Seq() uint64 {
	return f.seq
}

func (f *Framer) next(data []byte, partial bool) Frame {
	f.seq++
	return Frame{
		Seq:        f.seq,
		CapturedAt: f.bufStart,
		Data:       data,
		Partial:    partial,
	}
}
