package trajectory

import (
	"io"

	"github.com/mastercactapus/armctl/coord"
)

// Reader is a source of trajectory lines in recorded order.
//
// ReadLine returns io.EOF once every line has been read.
type Reader interface {
	ReadLine() (string, error)
}

// PointsReader serves an in-memory sequence of points.
type PointsReader struct {
	Points []coord.Point
	n      int
}

var _ Reader = &PointsReader{}

func (r *PointsReader) Read() (coord.Point, error) {
	if r.n == len(r.Points) {
		return coord.Point{}, io.EOF
	}

	r.n++
	return r.Points[r.n-1], nil
}

func (r *PointsReader) ReadLine() (string, error) {
	p, err := r.Read()
	if err != nil {
		return "", err
	}
	return FormatPoint(p), nil
}
