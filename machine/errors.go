package machine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReadyTimeout means the arm did not confirm it was ready for playback.
	ErrReadyTimeout = errors.New("ready timeout")
	// ErrAckTimeout means a played point was not acknowledged.
	ErrAckTimeout = errors.New("ack timeout")
	// ErrInactivity means the arm went silent during a recording.
	ErrInactivity = errors.New("inactivity timeout")
)

type ReadyTimeoutError struct {
	Timeout time.Duration
}

func (e *ReadyTimeoutError) Error() string {
	return fmt.Sprintf("play: no %s from arm within %s", TokenReady, e.Timeout)
}
func (e *ReadyTimeoutError) Unwrap() error { return ErrReadyTimeout }

// AckTimeoutError reports the point that was not acknowledged.
type AckTimeoutError struct {
	// Index is the zero-based position of the point in the trajectory.
	Index   int
	Point   string
	Timeout time.Duration
}

func (e *AckTimeoutError) Error() string {
	return fmt.Sprintf("play: no %s for point %d (%s) within %s", TokenAck, e.Index, e.Point, e.Timeout)
}
func (e *AckTimeoutError) Unwrap() error { return ErrAckTimeout }

type InactivityError struct {
	State RecordState
	Idle  time.Duration
}

func (e *InactivityError) Error() string {
	return fmt.Sprintf("record: no data from arm for %s while %s", e.Idle.Round(time.Millisecond), e.State)
}
func (e *InactivityError) Unwrap() error { return ErrInactivity }
