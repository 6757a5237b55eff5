package machine

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/mastercactapus/armctl/trajectory"
)

// quantizedPrec is the number of decimals sent for quantized points.
const quantizedPrec = 3

// PlayResult describes a finished playback session.
type PlayResult struct {
	// Points is the number of acknowledged points.
	Points int
	// Done is set if the arm confirmed the end of the trajectory.
	Done    bool
	Elapsed time.Duration
}

// quantizeLine rounds both axes of a trajectory line to step.
// Lines that do not parse are returned unchanged.
func quantizeLine(line string, step float64) string {
	p, err := trajectory.ParsePoint(line)
	if err != nil {
		return line
	}
	return trajectory.FormatPointPrec(p.Quantize(step), quantizedPrec)
}

// Play sends each line of r to the arm, waiting for an acknowledgment
// after every point.
//
// A missing acknowledgment stops playback immediately with an
// *AckTimeoutError; no further points are sent.
func (m *Machine) Play(r trajectory.Reader) (*PlayResult, error) {
	start := time.Now()
	res := &PlayResult{}
	defer func() { res.Elapsed = time.Since(start) }()

	m.conn.ResetInputBuffer()
	_, err := m.conn.Write([]byte{cmdPlay})
	if err != nil {
		return res, fmt.Errorf("play: arm: %w", err)
	}
	ok, err := m.waitFor(TokenReady, m.opt.ReadyTimeout)
	if err != nil {
		return res, fmt.Errorf("play: wait for %s: %w", TokenReady, err)
	}
	if !ok {
		return res, &ReadyTimeoutError{Timeout: m.opt.ReadyTimeout}
	}

	_, err = m.conn.Write([]byte(StartSentinel + "\n"))
	if err != nil {
		return res, fmt.Errorf("play: start: %w", err)
	}

	step := m.opt.StepResolution()
	for i := 0; ; i++ {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("play: read point %d: %w", i, err)
		}
		if m.opt.Quantize {
			line = quantizeLine(line, step)
		}

		_, err = m.conn.Write([]byte(line + "\n"))
		if err != nil {
			return res, fmt.Errorf("play: send point %d: %w", i, err)
		}
		ok, err := m.waitFor(TokenAck, m.opt.AckTimeout)
		if err != nil {
			return res, fmt.Errorf("play: wait for %s on point %d: %w", TokenAck, i, err)
		}
		if !ok {
			return res, &AckTimeoutError{Index: i, Point: line, Timeout: m.opt.AckTimeout}
		}
		res.Points++
	}

	_, err = m.conn.Write([]byte(EndSentinel + "\n"))
	if err != nil {
		return res, fmt.Errorf("play: end: %w", err)
	}
	res.Done, err = m.waitFor(TokenDone, m.opt.DoneTimeout)
	if err != nil {
		log.Printf("ERROR: play: wait for %s: %v", TokenDone, err)
	} else if !res.Done {
		log.Printf("play: no %s within %s", TokenDone, m.opt.DoneTimeout)
	}

	return res, nil
}

// PlayFile plays the trajectory file name.
func (m *Machine) PlayFile(name string) (*PlayResult, error) {
	f, err := trajectory.Open(name)
	if err != nil {
		return nil, fmt.Errorf("play: open '%s': %w", name, err)
	}
	defer f.Close()

	return m.Play(f)
}
