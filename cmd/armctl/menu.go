package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mastercactapus/armctl/machine"
)

const menuText = `
=== MAIN MENU ===
h  : Homing
p  : Read angles (θ1, θ2)
k  : Forward kinematics
m  : Inverse kinematics (no motion)
i  : Move to (X,Y)
o  : Report positions (motor1, motor2)
e  : Enable motors
d  : Disable motors
s  : Move motor 2 by N steps
1  : Jog motor 1
2  : Jog motor 2
g  : Record trajectory
r  : Play trajectory
x  : Stop recording
b  : Start/stop position streaming
q  : Quit
`

func newMenuCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive text menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, l, err := f.connect()
			if err != nil {
				return err
			}
			defer l.Close()

			mn := newMenu(m, cmd.InOrStdin(), cmd.OutOrStdout(), f.cfg.Server.DataDir)
			return mn.run(cmd.Context())
		},
	}
}

type menu struct {
	m   *machine.Machine
	in  *bufio.Scanner
	out io.Writer
	dir string

	// cumulative jog steps per axis
	jog1, jog2 int
}

func newMenu(m *machine.Machine, in io.Reader, out io.Writer, dir string) *menu {
	return &menu{
		m:    m,
		in:   bufio.NewScanner(in),
		out:  out,
		dir:  dir,
		jog1: machine.JogSteps,
		jog2: machine.JogSteps,
	}
}

// prompt returns the next input line, or false once input is exhausted.
func (mn *menu) prompt(label string) (string, bool) {
	fmt.Fprint(mn.out, label)
	if !mn.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(mn.in.Text()), true
}

func (mn *menu) promptFloat(label string) (float64, error) {
	s, ok := mn.prompt(label)
	if !ok {
		return 0, io.EOF
	}
	return strconv.ParseFloat(s, 64)
}

func (mn *menu) file(label, ext string) (string, bool) {
	name, ok := mn.prompt(label)
	if !ok || name == "" {
		return "", false
	}
	if filepath.Ext(name) == "" {
		name += ext
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(mn.dir, name)
	}
	return name, true
}

func (mn *menu) print(lines []string, err error) {
	printLines(mn.out, lines)
	if err != nil {
		fmt.Fprintln(mn.out, "Error:", err)
	}
}

func (mn *menu) run(ctx context.Context) error {
	defer func() {
		if s := mn.m.ActiveStream(); s != nil {
			s.Stop()
		}
	}()

	for {
		fmt.Fprint(mn.out, menuText)
		opt, ok := mn.prompt("Option: ")
		if !ok {
			return mn.in.Err()
		}

		opt = strings.ToLower(opt)
		switch opt {
		case "q":
			fmt.Fprintln(mn.out, "Exiting.")
			return nil
		case "h":
			mn.print(mn.m.Home())
		case "p":
			mn.print(mn.m.Angles())
		case "k":
			mn.print(mn.m.ForwardKinematics())
		case "o":
			mn.print(mn.m.Send("o"))
		case "e":
			mn.print(mn.m.Enable())
		case "d":
			mn.print(mn.m.Disable())
		case "1":
			mn.print(mn.m.Jog(1))
			mn.jog1 += machine.JogSteps
			fmt.Fprintf(mn.out, "Motor 1 jog target: %d steps\n", mn.jog1)
		case "2":
			mn.print(mn.m.Jog(2))
			mn.jog2 += machine.JogSteps
			fmt.Fprintf(mn.out, "Motor 2 jog target: %d steps\n", mn.jog2)
		case "s":
			s, _ := mn.prompt("Steps to move motor 2? ")
			n, err := strconv.Atoi(s)
			if err != nil {
				fmt.Fprintln(mn.out, "Invalid step count:", s)
				continue
			}
			mn.print(mn.m.StepAxis2(n))
		case "m", "i":
			x, err := mn.promptFloat("Target X [mm]: ")
			if err != nil {
				fmt.Fprintln(mn.out, "Invalid X:", err)
				continue
			}
			y, err := mn.promptFloat("Target Y [mm]: ")
			if err != nil {
				fmt.Fprintln(mn.out, "Invalid Y:", err)
				continue
			}
			if opt == "m" {
				mn.print(mn.m.InverseKinematics(x, y))
			} else {
				mn.print(mn.m.MoveTo(x, y))
			}
		case "g":
			name, ok := mn.file("Save trajectory as: ", ".csv")
			if !ok {
				continue
			}
			res, err := mn.m.RecordFile(name)
			if err != nil {
				fmt.Fprintln(mn.out, "Error:", err)
				continue
			}
			fmt.Fprintf(mn.out, "Trajectory saved to %s (%d points)\n", res.Path, res.Points)
		case "r":
			name, ok := mn.file("Trajectory to play: ", ".csv")
			if !ok {
				continue
			}
			res, err := mn.m.PlayFile(name)
			if err != nil {
				fmt.Fprintln(mn.out, "Error:", err)
				continue
			}
			fmt.Fprintf(mn.out, "Trajectory sent and executed (%d points)\n", res.Points)
		case "x":
			err := mn.m.StopRecording()
			if err != nil {
				fmt.Fprintln(mn.out, "Error:", err)
			}
		case "b":
			mn.toggleStream(ctx)
		default:
			fmt.Fprintln(mn.out, "Unrecognized option. Try again.")
		}
	}
}

func (mn *menu) toggleStream(ctx context.Context) {
	if s := mn.m.ActiveStream(); s != nil {
		err := s.Stop()
		if err != nil {
			fmt.Fprintln(mn.out, "Error:", err)
		}
		fmt.Fprintf(mn.out, "Streaming stopped after %d samples\n", s.Samples())
		return
	}

	name, ok := mn.file("Log positions to: ", ".tsv")
	if !ok {
		return
	}
	_, started, err := mn.m.StartStreamFile(ctx, name, nil)
	switch {
	case err != nil:
		fmt.Fprintln(mn.out, "Error:", err)
	case !started:
		fmt.Fprintln(mn.out, "Streaming already active")
	default:
		fmt.Fprintf(mn.out, "Streaming positions to %s, press b to stop\n", name)
	}
}
