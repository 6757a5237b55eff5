package machine

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mastercactapus/armctl/coord"
	"github.com/mastercactapus/armctl/trajectory"
)

// RecordState is the state of a recording session.
type RecordState string

const (
	StateIdle      RecordState = "IDLE"
	StateArmed     RecordState = "ARMED"
	StateRecording RecordState = "RECORDING"
	StateDone      RecordState = "DONE"
	StateTimedOut  RecordState = "TIMED_OUT"
)

// PointWriter receives recorded points in arrival order.
type PointWriter interface {
	WritePoint(coord.Point) error
}

// RecordResult describes a finished recording session.
type RecordResult struct {
	State RecordState
	// Points is the number of samples written to the sink.
	Points int
	// Discarded counts malformed sample lines that were skipped.
	Discarded int
	Elapsed   time.Duration

	// Path is set by RecordFile.
	Path string
}

// Record asks the arm to stream a trajectory and writes every valid
// sample between the start and end sentinels to w.
//
// If nothing arrives for Options.InactivityTimeout the arm is asked to
// stop and an *InactivityError is returned along with the partial result.
func (m *Machine) Record(w PointWriter) (*RecordResult, error) {
	start := time.Now()
	res := &RecordResult{State: StateIdle}
	defer func() { res.Elapsed = time.Since(start) }()

	m.conn.ResetInputBuffer()
	_, err := m.conn.Write([]byte{cmdRecord})
	if err != nil {
		return res, fmt.Errorf("record: arm: %w", err)
	}
	res.State = StateArmed

	lastRx := time.Now()
	for {
		raw, err := m.conn.ReadLine(m.opt.RecordReadTimeout)
		if err != nil {
			return res, fmt.Errorf("record: read: %w", err)
		}

		if len(raw) == 0 {
			idle := time.Since(lastRx)
			if idle <= m.opt.InactivityTimeout {
				continue
			}
			err := m.StopRecording()
			if err != nil {
				log.Println("ERROR: record: stop request:", err)
			}
			iErr := &InactivityError{State: res.State, Idle: idle}
			res.State = StateTimedOut
			return res, iErr
		}
		lastRx = time.Now()

		line := decodeLine(raw)
		switch line {
		case StartSentinel:
			res.State = StateRecording
			continue
		case EndSentinel:
			res.State = StateDone
			return res, nil
		}

		if res.State != StateRecording || !strings.Contains(line, trajectory.Separator) {
			continue
		}
		p, err := trajectory.ParsePoint(line)
		if err != nil {
			res.Discarded++
			continue
		}
		err = w.WritePoint(p)
		if err != nil {
			return res, fmt.Errorf("record: write point: %w", err)
		}
		res.Points++
	}
}

// RecordFile records a trajectory into the file name, which is
// created or truncated. The file is closed when the session ends.
func (m *Machine) RecordFile(name string) (*RecordResult, error) {
	w, err := trajectory.Create(name)
	if err != nil {
		return nil, fmt.Errorf("record: create '%s': %w", name, err)
	}
	res, err := m.Record(w)
	res.Path = name
	cErr := w.Close()
	if err == nil && cErr != nil {
		err = fmt.Errorf("record: close '%s': %w", name, cErr)
	}
	return res, err
}
