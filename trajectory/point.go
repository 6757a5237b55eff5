package trajectory

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mastercactapus/armctl/coord"
)

// Separator splits the two axis values of a trajectory line.
const Separator = ","

// ErrInvalidPoint is returned for lines that do not hold exactly two numbers.
var ErrInvalidPoint = errors.New("invalid trajectory point")

// ParsePoint parses a "<axis1>,<axis2>" line.
func ParsePoint(line string) (p coord.Point, err error) {
	parts := strings.SplitN(strings.TrimSpace(line), Separator, 2)
	if len(parts) != 2 {
		return p, ErrInvalidPoint
	}
	p.A1, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return p, err
	}
	p.A2, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return p, err
	}
	return p, nil
}

func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// FormatPoint formats p using the shortest decimal form that parses back
// to the same values.
func FormatPoint(p coord.Point) string {
	return formatFloat(p.A1, -1) + Separator + formatFloat(p.A2, -1)
}

// FormatPointPrec formats p with a fixed number of decimals.
func FormatPointPrec(p coord.Point, prec int) string {
	return formatFloat(p.A1, prec) + Separator + formatFloat(p.A2, prec)
}
