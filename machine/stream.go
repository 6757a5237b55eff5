package machine

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/mastercactapus/armctl/coord"
	"github.com/mastercactapus/armctl/trajectory"
)

// SampleWriter receives streamed positions. It is closed when the stream ends.
type SampleWriter interface {
	WriteSample(coord.Point) error
	Close() error
}

// Stream is a running position streaming session.
type Stream struct {
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	samples int64
}

// Stop signals the stream to end and waits for the current
// iteration to finish and the sink to be closed.
func (s *Stream) Stop() error {
	s.cancel()
	<-s.done
	return s.err
}

// Done is closed once the stream has ended.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err is the reason the stream ended; only valid after Done is closed.
func (s *Stream) Err() error { return s.err }

// Samples is the number of samples written so far.
func (s *Stream) Samples() int { return int(atomic.LoadInt64(&s.samples)) }

// ActiveStream returns the running stream, or nil.
func (m *Machine) ActiveStream() *Stream {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.stream
}

// StartStream starts polling the accumulated positions in the background,
// writing every parsed sample to w and passing it to observe, if set.
//
// Only one stream runs per Machine. If one is already active it is
// returned with started set to false, and w is left untouched.
//
// The stream runs until ctx is cancelled, Stop is called, or the
// connection fails.
func (m *Machine) StartStream(ctx context.Context, w SampleWriter, observe func(coord.Point)) (s *Stream, started bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.stream != nil {
		return m.stream, false
	}
	return m.startStream(ctx, w, observe), true
}

// StartStreamFile is like StartStream, writing to a new streaming log at name.
func (m *Machine) StartStreamFile(ctx context.Context, name string, observe func(coord.Point)) (s *Stream, started bool, err error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.stream != nil {
		return m.stream, false, nil
	}
	w, err := trajectory.CreateSampleLog(name)
	if err != nil {
		return nil, false, fmt.Errorf("stream: create '%s': %w", name, err)
	}
	return m.startStream(ctx, w, observe), true, nil
}

// startStream must be called with m.mx held.
func (m *Machine) startStream(ctx context.Context, w SampleWriter, observe func(coord.Point)) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.stream = s

	go func() {
		err := m.streamLoop(ctx, s, w, observe)
		cErr := w.Close()
		if err == nil && cErr != nil {
			err = fmt.Errorf("stream: close: %w", cErr)
		}
		if err != nil {
			log.Println("ERROR: stream:", err)
		}
		log.Printf("Position stream ended after %d samples", s.Samples())

		m.mx.Lock()
		if m.stream == s {
			m.stream = nil
		}
		m.mx.Unlock()

		s.err = err
		cancel()
		close(s.done)
	}()

	return s
}

func (m *Machine) streamLoop(ctx context.Context, s *Stream, w SampleWriter, observe func(coord.Point)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		lines, err := m.Send(cmdPositions)
		if err != nil {
			return err
		}
		for _, line := range lines {
			p, err := parseSample(line)
			if err != nil {
				continue
			}
			err = w.WriteSample(p)
			if err != nil {
				return fmt.Errorf("stream: write sample: %w", err)
			}
			atomic.AddInt64(&s.samples, 1)
			if observe != nil {
				observe(p)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.opt.SampleInterval):
		}
	}
}
