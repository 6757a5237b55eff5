package trajectory

import (
	"encoding/csv"
	"io"

	"github.com/mastercactapus/armctl/coord"
)

// Writer appends points to a trajectory file.
type Writer struct {
	cw *csv.Writer
	c  io.Closer
}

func NewWriter(w io.Writer) *Writer {
	tw := &Writer{cw: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		tw.c = c
	}
	return tw
}

// WritePoint writes a single point and flushes it to the underlying writer.
func (w *Writer) WritePoint(p coord.Point) error {
	err := w.cw.Write([]string{formatFloat(p.A1, -1), formatFloat(p.A2, -1)})
	if err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

// Close flushes pending data and closes the underlying writer, if it is an io.Closer.
func (w *Writer) Close() error {
	w.cw.Flush()
	err := w.cw.Error()
	if w.c != nil {
		cErr := w.c.Close()
		if err == nil {
			err = cErr
		}
	}
	return err
}
