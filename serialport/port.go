// Package serialport opens UART adapters for talking to the boot ROM.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds every read when Config.ReadTimeout is zero.
const DefaultReadTimeout = 10 * time.Second

// Config describes how a port is opened. The line is always 8N1.
type Config struct {
	// BaudRate is the UART speed, 115200 when zero
	BaudRate int

	// ReadTimeout bounds each Read call
	ReadTimeout time.Duration
}

// device is the subset of serial.Port used by Port.
type device interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
}

var (
	openDevice = func(name string, mode *serial.Mode) (device, error) {
		return serial.Open(name, mode)
	}
	listDevices = serial.GetPortsList
)

// Port is an open serial port.
//
// A Read that times out without data returns os.ErrDeadlineExceeded instead
// of (0, nil), so fixed-size reads fail rather than spin.
type Port struct {
	name    string
	dev     device
	timeout time.Duration
}

// Open opens the named port.
//
// Example:
//
//	port, err := serialport.Open("/dev/ttyUSB0", serialport.Config{BaudRate: 115200})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
func Open(name string, cfg Config) (*Port, error) {
	if name == "" {
		return nil, errors.New("serial port name is empty")
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	dev, err := openDevice(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	p := &Port{name: name, dev: dev}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return p, nil
}

// Name returns the port name.
func (p *Port) Name() string {
	return p.name
}

func (p *Port) Read(b []byte) (int, error) {
	n, err := p.dev.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, fmt.Errorf("read %s after %s: %w", p.name, p.timeout, os.ErrDeadlineExceeded)
	}
	return n, err
}

func (p *Port) Write(b []byte) (int, error) {
	return p.dev.Write(b)
}

// Close closes the port.
func (p *Port) Close() error {
	return p.dev.Close()
}

// SetReadTimeout changes the per-read timeout.
func (p *Port) SetReadTimeout(t time.Duration) error {
	if err := p.dev.SetReadTimeout(t); err != nil {
		return fmt.Errorf("set read timeout on %s: %w", p.name, err)
	}
	p.timeout = t
	return nil
}

// ResetInputBuffer discards unread input, e.g. boot messages printed before
// the sync preamble.
func (p *Port) ResetInputBuffer() error {
	return p.dev.ResetInputBuffer()
}

// EnterBootMode drives the common auto-boot wiring of development boards:
// DTR holds the BOOT strap high while RTS pulses the chip reset.
func (p *Port) EnterBootMode(hold time.Duration) error {
	steps := []struct {
		set   func(bool) error
		level bool
	}{
		{p.dev.SetDTR, true},
		{p.dev.SetRTS, true},
		{nil, false},
		{p.dev.SetRTS, false},
		{nil, false},
		{p.dev.SetDTR, false},
	}

	for _, s := range steps {
		if s.set == nil {
			time.Sleep(hold)
			continue
		}
		if err := s.set(s.level); err != nil {
			return fmt.Errorf("enter boot mode on %s: %w", p.name, err)
		}
	}
	return nil
}

// List returns the names of the serial ports present on the system, sorted.
func List() ([]string, error) {
	ports, err := listDevices()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
