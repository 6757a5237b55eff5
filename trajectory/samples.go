package trajectory

import (
	"encoding/csv"
	"io"

	"github.com/mastercactapus/armctl/coord"
)

// SampleHeader is the first row of a streaming log.
var SampleHeader = []string{"posacum1", "posacum2"}

// SampleWriter writes accumulated positions as tab-separated rows.
//
// The header row is written before the first sample, or on Close
// if no sample was written.
type SampleWriter struct {
	cw     *csv.Writer
	c      io.Closer
	header bool
}

func NewSampleWriter(w io.Writer) *SampleWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	sw := &SampleWriter{cw: cw}
	if c, ok := w.(io.Closer); ok {
		sw.c = c
	}
	return sw
}

func (w *SampleWriter) writeHeader() error {
	if w.header {
		return nil
	}
	w.header = true
	return w.cw.Write(SampleHeader)
}

// WriteSample appends p and flushes, so partial runs survive a crash.
func (w *SampleWriter) WriteSample(p coord.Point) error {
	err := w.writeHeader()
	if err != nil {
		return err
	}
	err = w.cw.Write([]string{formatFloat(p.A1, -1), formatFloat(p.A2, -1)})
	if err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

func (w *SampleWriter) Close() error {
	err := w.writeHeader()
	w.cw.Flush()
	if err == nil {
		err = w.cw.Error()
	}
	if w.c != nil {
		cErr := w.c.Close()
		if err == nil {
			err = cErr
		}
	}
	return err
}
