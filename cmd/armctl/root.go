package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mastercactapus/armctl/config"
	"github.com/mastercactapus/armctl/link"
	"github.com/mastercactapus/armctl/machine"
	"github.com/mastercactapus/armctl/spjs"
)

type rootFlags struct {
	configFile string
	port       string
	baud       int
	spjsURL    string
	quantize   bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:          "armctl",
		Short:        "Record, replay and drive a two-axis stepper arm over serial",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return f.load(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&f.port, "port", "p", "", "Port path (or name if using SPJS).")
	pf.IntVar(&f.baud, "baud", link.DefaultBaudRate, "Baud rate of the arm controller.")
	pf.StringVar(&f.spjsURL, "spjs", "", "Websocket URL of the SPJS server to use.")
	pf.BoolVar(&f.quantize, "quantize", false, "Round played points to the step resolution.")

	cmd.AddCommand(
		newMenuCmd(&f),
		newSendCmd(&f),
		newRecordCmd(&f),
		newPlayCmd(&f),
		newStreamCmd(&f),
		newServeCmd(&f),
	)

	return cmd
}

// load reads the configuration file and applies flags given on the command line.
func (f *rootFlags) load(cmd *cobra.Command) error {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = f.port
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = f.baud
	}
	if flags.Changed("spjs") {
		cfg.Serial.SPJS = f.spjsURL
	}
	if flags.Changed("quantize") {
		cfg.Arm.Quantize = f.quantize
	}

	err = cfg.Validate()
	if err != nil {
		return err
	}
	f.cfg = cfg
	return nil
}

// connect opens the configured link and returns the machine using it.
func (f *rootFlags) connect() (*machine.Machine, *link.Link, error) {
	cfg := f.cfg

	var l *link.Link
	if cfg.Serial.SPJS != "" {
		port := spjs.Dial(cfg.Serial.SPJS, cfg.Serial.Port, cfg.Serial.Baud)
		time.Sleep(cfg.Serial.SettleDelay)
		l = link.New(port)
	} else {
		var err error
		l, err = link.Open(cfg.Link())
		if err != nil {
			return nil, nil, err
		}
	}

	opt := cfg.Machine()
	fmt.Printf("Step resolution: %.4f°\n", opt.StepResolution())
	return machine.NewMachine(l, opt), l, nil
}
