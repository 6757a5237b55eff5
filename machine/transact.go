package machine

import (
	"fmt"
	"strings"
	"time"
)

// Send writes cmd followed by a newline and returns every non-empty
// line received until the collection window has elapsed.
//
// The window is measured from the call, so Send returns after roughly
// Options.Window no matter how much the peer sends.
func (m *Machine) Send(cmd string) ([]string, error) {
	start := time.Now()
	_, err := m.conn.Write([]byte(cmd + "\n"))
	if err != nil {
		return nil, fmt.Errorf("send %q: %w", cmd, err)
	}

	var lines []string
	for {
		remaining := m.opt.Window - time.Since(start)
		if remaining <= 0 {
			return lines, nil
		}
		raw, err := m.conn.ReadLine(min(remaining, m.opt.PollTimeout))
		if err != nil {
			return lines, fmt.Errorf("send %q: read: %w", cmd, err)
		}
		if line := decodeLine(raw); line != "" {
			lines = append(lines, line)
		}
	}
}

// waitFor reads until a line containing token arrives or timeout elapses.
func (m *Machine) waitFor(token string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		raw, err := m.conn.ReadLine(remaining)
		if err != nil {
			return false, err
		}
		if len(raw) == 0 {
			continue
		}
		if strings.Contains(decodeLine(raw), token) {
			return true, nil
		}
	}
}
