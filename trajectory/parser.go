package trajectory

import (
	"bufio"
	"io"
	"strings"

	"github.com/mastercactapus/armctl/coord"
)

// Parser reads a trajectory file, one point per line.
type Parser struct{ br *bufio.Reader }

var _ Reader = &Parser{}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

// ReadLine returns the next non-empty line, trimmed, without validating it.
func (p *Parser) ReadLine() (string, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return "", err
		}

		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		return s, nil
	}
}

// Read returns the next point.
func (p *Parser) Read() (coord.Point, error) {
	s, err := p.ReadLine()
	if err != nil {
		return coord.Point{}, err
	}
	return ParsePoint(s)
}

// ReadAll parses every point from r.
func ReadAll(r io.Reader) ([]coord.Point, error) {
	p := NewParser(r)
	var res []coord.Point
	for {
		pt, err := p.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		res = append(res, pt)
	}
	return res, nil
}
