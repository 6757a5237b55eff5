package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mastercactapus/armctl/coord"
)

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func newSendCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command> [args...]",
		Short: "Send a single command and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, l, err := f.connect()
			if err != nil {
				return err
			}
			defer l.Close()

			lines, err := m.Send(strings.Join(args, " "))
			printLines(cmd.OutOrStdout(), lines)
			return err
		},
	}
}

func newRecordCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "record <file.csv>",
		Short: "Record a trajectory guided by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, l, err := f.connect()
			if err != nil {
				return err
			}
			defer l.Close()

			res, err := m.RecordFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trajectory saved to %s (%d points, %d discarded)\n", res.Path, res.Points, res.Discarded)
			return nil
		},
	}
}

func newPlayCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "play <file.csv>",
		Short: "Replay a recorded trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, l, err := f.connect()
			if err != nil {
				return err
			}
			defer l.Close()

			res, err := m.PlayFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trajectory sent and executed (%d points)\n", res.Points)
			return nil
		},
	}
}

func newStreamCmd(f *rootFlags) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "stream <file.tsv>",
		Short: "Log accumulated positions until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, l, err := f.connect()
			if err != nil {
				return err
			}
			defer l.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			if duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			s, _, err := m.StartStreamFile(ctx, args[0], func(p coord.Point) {
				fmt.Fprintf(out, "%g\t%g\n", p.A1, p.A2)
			})
			if err != nil {
				return err
			}
			<-s.Done()
			fmt.Fprintf(out, "Streaming stopped: %d samples in %s\n", s.Samples(), args[0])
			return s.Err()
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this long (0 = until interrupted).")

	return cmd
}
