package acserial

import (
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// AutoPort asks OpenPort to pick the first USB serial port.
const AutoPort = "auto"

// DefaultBaud is the unit's UART speed.
const DefaultBaud = 9600

// ErrNoPort is returned when auto-detection finds no USB serial port.
var ErrNoPort = errors.New("acserial: no usb serial port found")

// PortOpener returns an Opener for name at baud, 8N1.
func PortOpener(name string, baud int) Opener {
	return func() (io.ReadWriteCloser, error) {
		return OpenPort(name, baud)
	}
}

// OpenPort opens the serial device name at baud, 8N1.
func OpenPort(name string, baud int) (serial.Port, error) {
	if name == AutoPort {
		detected, err := detectPort()
		if err != nil {
			return nil, err
		}
		name = detected
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return port, nil
}

func detectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}
	return "", ErrNoPort
}
