package machine

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mastercactapus/armctl/link"
)

type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipePort) Close() error {
	p.r.Close()
	return p.w.Close()
}

// fakeArm emulates the arm firmware on the far side of a pipe.
type fakeArm struct {
	devR *io.PipeReader
	devW *io.PipeWriter

	mx sync.Mutex

	// configuration, set before use
	responses map[string][]string
	recording []string
	silentRDY bool
	dropAck   int
	noDone    bool

	// observed traffic
	commands []string
	points   []string
	stops    int
}

func newFakeArm(t *testing.T) (*fakeArm, *link.Link) {
	t.Helper()
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()
	arm := &fakeArm{
		devR:      devR,
		devW:      devW,
		responses: make(map[string][]string),
		dropAck:   -1,
	}
	l := link.New(&pipePort{r: hostR, w: hostW})
	go arm.run()
	t.Cleanup(func() {
		l.Close()
		devR.Close()
		devW.Close()
	})
	return arm, l
}

func testOptions() Options {
	return Options{
		Window:            60 * time.Millisecond,
		PollTimeout:       10 * time.Millisecond,
		RecordReadTimeout: 20 * time.Millisecond,
		InactivityTimeout: 100 * time.Millisecond,
		ReadyTimeout:      200 * time.Millisecond,
		AckTimeout:        200 * time.Millisecond,
		DoneTimeout:       200 * time.Millisecond,
		SampleInterval:    10 * time.Millisecond,
		Microsteps:        1600,
	}
}

func newTestMachine(t *testing.T, opt Options) (*Machine, *fakeArm) {
	arm, l := newFakeArm(t)
	return NewMachine(l, opt), arm
}

func (a *fakeArm) println(lines ...string) {
	if len(lines) == 0 {
		return
	}
	a.devW.Write([]byte(strings.Join(lines, "\r\n") + "\r\n"))
}

func (a *fakeArm) run() {
	br := bufio.NewReader(a.devR)
	playing := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if playing {
			rest, err := br.ReadString('\n')
			if err != nil {
				return
			}
			playing = a.playLine(strings.TrimSpace(string(b) + rest))
			continue
		}

		switch b {
		case '\r', '\n':
		case cmdRecord:
			a.mx.Lock()
			lines := a.recording
			a.mx.Unlock()
			a.println(lines...)
		case cmdStop:
			a.mx.Lock()
			a.stops++
			a.mx.Unlock()
		case cmdPlay:
			a.mx.Lock()
			silent := a.silentRDY
			a.mx.Unlock()
			if !silent {
				a.println(TokenReady)
				playing = true
			}
		default:
			rest, err := br.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(string(b) + rest)
			a.mx.Lock()
			a.commands = append(a.commands, cmd)
			lines := a.responses[cmd]
			a.mx.Unlock()
			a.println(lines...)
		}
	}
}

func (a *fakeArm) playLine(line string) bool {
	switch line {
	case StartSentinel:
		return true
	case EndSentinel:
		a.mx.Lock()
		noDone := a.noDone
		a.mx.Unlock()
		if !noDone {
			a.println(TokenDone)
		}
		return false
	}

	a.mx.Lock()
	idx := len(a.points)
	a.points = append(a.points, line)
	drop := idx == a.dropAck
	a.mx.Unlock()
	if !drop {
		a.println(TokenAck)
	}
	return true
}

func (a *fakeArm) Commands() []string {
	a.mx.Lock()
	defer a.mx.Unlock()
	return append([]string(nil), a.commands...)
}

func (a *fakeArm) Points() []string {
	a.mx.Lock()
	defer a.mx.Unlock()
	return append([]string(nil), a.points...)
}

func (a *fakeArm) Stops() int {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.stops
}
