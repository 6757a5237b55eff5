// Package link owns the serial connection to the arm controller.
//
// It carries bytes only; framing beyond newline splitting
// is left to the protocol layer.
package link

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaudRate is the rate the arm firmware is built for.
const DefaultBaudRate = 115200

// Port is the byte transport under a Link.
//
// A Port may also implement Flush() error to discard
// input buffered by the driver.
type Port interface {
	io.ReadWriteCloser
}

type flusher interface {
	Flush() error
}

// Config identifies a serial endpoint.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM6")
	Port string
	Baud int

	// ReadTimeout bounds a single driver read so the
	// reader goroutine notices Close.
	ReadTimeout time.Duration

	// SettleDelay is waited after opening, since opening the
	// port resets the microcontroller.
	SettleDelay time.Duration
}

// ConnectionError is returned when the port cannot be opened.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("open serial port %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Open opens the serial device described by cfg and waits for
// the controller to come out of reset.
func Open(cfg Config) (*Link, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaudRate
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}

	time.Sleep(cfg.SettleDelay)
	log.Printf("Connected to %s at %d baud", cfg.Port, cfg.Baud)

	return New(port), nil
}
