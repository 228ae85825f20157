// Package serialdev implements adapt.Device over a physical UART using
// github.com/tarm/serial, the library the teacher's own usock.go (not
// go.bug.st/serial, which sits unused in the teacher's go.mod) actually
// opens, reads and writes its nRF52 link through.
package serialdev

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Device wraps an open tarm/serial port.
type Device struct {
	port *serial.Port
}

// Open opens name at baud 8N1, with a short read timeout so Read can
// return 0 ("no data") instead of blocking the caller's step loop, the
// same config shape usock.New builds (serial.Config: Name, Baud, Size,
// Parity, StopBits, ReadTimeout).
func Open(name string, baud int) (*Device, error) {
	config := &serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 50 * time.Millisecond,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("serialdev: failed to open %s: %w", name, err)
	}

	return &Device{port: port}, nil
}

// Read returns 0, nil on a timed-out read (no data available within the
// configured ReadTimeout, which tarm/serial surfaces as io.EOF) or the
// number of bytes read.
func (d *Device) Read(buf []byte) (int, error) {
	n, err := d.port.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("serialdev: read failed: %w", err)
	}
	return n, nil
}

// Write writes the entire buffer, looping over short writes the way
// the original ioDeviceWrite does, bounded to a handful of retries.
func (d *Device) Write(buf []byte) error {
	const maxRounds = 10

	remaining := buf
	for round := 0; len(remaining) > 0; round++ {
		if round >= maxRounds {
			return fmt.Errorf("serialdev: write did not complete after %d rounds", maxRounds)
		}
		n, err := d.port.Write(remaining)
		if err != nil {
			return fmt.Errorf("serialdev: write failed: %w", err)
		}
		remaining = remaining[n:]
	}
	return nil
}

// Close releases the serial port.
func (d *Device) Close() error {
	return d.port.Close()
}
