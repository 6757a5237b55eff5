package machine

import (
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/armctl/coord"
)

// Options hold the protocol timing and arm parameters.
type Options struct {
	// Window is how long Send collects response lines, measured
	// from the moment the command is written.
	Window time.Duration
	// PollTimeout bounds each read inside the collection window.
	PollTimeout time.Duration

	RecordReadTimeout time.Duration
	// InactivityTimeout aborts a recording when nothing has
	// been received for this long.
	InactivityTimeout time.Duration

	ReadyTimeout time.Duration
	AckTimeout   time.Duration
	DoneTimeout  time.Duration

	SampleInterval time.Duration

	// Microsteps per output revolution; determines the step resolution.
	Microsteps int
	// Quantize rounds played points to the step resolution.
	Quantize bool
}

// DefaultOptions returns the timings the arm firmware was tuned with.
func DefaultOptions() Options {
	return Options{
		Window:            200 * time.Millisecond,
		PollTimeout:       50 * time.Millisecond,
		RecordReadTimeout: 800 * time.Millisecond,
		InactivityTimeout: 3 * time.Second,
		ReadyTimeout:      2 * time.Second,
		AckTimeout:        10 * time.Second,
		DoneTimeout:       3 * time.Second,
		SampleInterval:    100 * time.Millisecond,
		Microsteps:        1600,
	}
}

// StepResolution is the smallest angle the arm can realize, in degrees.
func (o Options) StepResolution() float64 {
	return coord.StepResolution(o.Microsteps)
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	set := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	set(&o.Window, def.Window)
	set(&o.PollTimeout, def.PollTimeout)
	set(&o.RecordReadTimeout, def.RecordReadTimeout)
	set(&o.InactivityTimeout, def.InactivityTimeout)
	set(&o.ReadyTimeout, def.ReadyTimeout)
	set(&o.AckTimeout, def.AckTimeout)
	set(&o.DoneTimeout, def.DoneTimeout)
	set(&o.SampleInterval, def.SampleInterval)
	if o.Microsteps <= 0 {
		o.Microsteps = def.Microsteps
	}
	return o
}

// Machine drives the arm controller protocol over a shared Conn.
//
// Record and Play own the response stream while they run; the caller
// must not start them concurrently with each other, with Send, or with
// a position stream.
type Machine struct {
	conn Conn
	opt  Options

	mx     sync.Mutex
	stream *Stream
}

// NewMachine returns a Machine using conn. Zero-valued options
// are replaced by their defaults.
func NewMachine(conn Conn, opt Options) *Machine {
	return &Machine{
		conn: conn,
		opt:  opt.withDefaults(),
	}
}

func (m *Machine) Options() Options { return m.opt }

// decodeLine drops invalid UTF-8 and surrounding whitespace.
func decodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}
