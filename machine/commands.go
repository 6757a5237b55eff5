package machine

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mastercactapus/armctl/coord"
)

// JogSteps is how far a single jog command moves an axis.
const JogSteps = 100

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 3, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
	}
	return strings.TrimRight(s, ".")
}

// Home runs the homing routine for both axes.
func (m *Machine) Home() ([]string, error) { return m.Send(cmdHome) }

// Angles reads the current joint angles.
func (m *Machine) Angles() ([]string, error) { return m.Send(cmdAngles) }

// ForwardKinematics asks the arm for the Cartesian position of the current angles.
func (m *Machine) ForwardKinematics() ([]string, error) { return m.Send(cmdForwardKinematics) }

// InverseKinematics asks for the angles reaching (x, y) mm, without moving.
func (m *Machine) InverseKinematics(x, y float64) ([]string, error) {
	return m.Send(cmdInverseKinematics + " " + formatFloat(x) + " " + formatFloat(y))
}

// MoveTo moves the arm to (x, y) mm.
func (m *Machine) MoveTo(x, y float64) ([]string, error) {
	return m.Send(cmdMoveTo + " " + formatFloat(x) + " " + formatFloat(y))
}

func (m *Machine) Enable() ([]string, error)  { return m.Send(cmdEnable) }
func (m *Machine) Disable() ([]string, error) { return m.Send(cmdDisable) }

// StepAxis2 moves axis 2 by n steps.
func (m *Machine) StepAxis2(n int) ([]string, error) {
	return m.Send(cmdStepAxis2 + " " + strconv.Itoa(n))
}

// Jog moves axis 1 or 2 by JogSteps.
func (m *Machine) Jog(axis int) ([]string, error) {
	switch axis {
	case 1:
		return m.Send(cmdJogAxis1)
	case 2:
		return m.Send(cmdJogAxis2)
	}
	return nil, errors.New("jog: unknown axis " + strconv.Itoa(axis))
}

// StopRecording politely asks the arm to end a recording.
func (m *Machine) StopRecording() error {
	_, err := m.conn.Write([]byte{cmdStop})
	return err
}

// ErrNoPositions is returned when the position report could not be parsed.
var ErrNoPositions = errors.New("no position report")

// parseSample parses an accumulated position report: two whitespace-separated numbers.
func parseSample(line string) (p coord.Point, err error) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return p, errors.New("invalid number of elements")
	}
	p.A1, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return p, err
	}
	p.A2, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return p, err
	}
	return p, nil
}

// Positions reads the accumulated encoder positions.
func (m *Machine) Positions() (coord.Point, error) {
	lines, err := m.Send(cmdPositions)
	if err != nil {
		return coord.Point{}, err
	}
	for _, line := range lines {
		p, err := parseSample(line)
		if err == nil {
			return p, nil
		}
	}
	return coord.Point{}, ErrNoPositions
}
