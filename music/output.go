package music

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.bug.st/serial"
)

const (
	VirtualPortName = "dB virtual output"
	MIDIBaudRate    = 31250
)

// Output receives the broadcaster's messages in emission order.
type Output interface {
	Send(msg midi.Message) error
	Close() error
	String() string
}

type PortOutput struct {
	port drivers.Out
	send func(midi.Message) error
}

func NewPortOutput(out drivers.Out) (*PortOutput, error) {
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", out.String(), err)
	}
	return &PortOutput{port: out, send: send}, nil
}

// OpenPortOutput looks the port up by name and, failing that or when virtual
// is set, opens a virtual port with that name through rtmidi.
func OpenPortOutput(name string, virtual bool) (*PortOutput, error) {
	if name == "" {
		name = VirtualPortName
	}
	if !virtual {
		if out, err := midi.FindOutPort(name); err == nil {
			return NewPortOutput(out)
		}
	}
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		return nil, errors.New("rtmidi driver not registered")
	}
	out, err := drv.OpenVirtualOut(name)
	if err != nil {
		return nil, fmt.Errorf("open virtual output %q: %w", name, err)
	}
	return NewPortOutput(out)
}

func (o *PortOutput) Send(msg midi.Message) error { return o.send(msg) }

func (o *PortOutput) Close() (errs error) {
	if !o.port.IsOpen() {
		return nil
	}
	for ch := uint8(0); ch < 16; ch++ {
		if err := o.send(midi.ControlChange(ch, midi.AllNotesOff, midi.Off)); err != nil {
			errs = errors.Join(errs, err)
			break
		}
	}
	return errors.Join(errs, o.port.Close())
}

func (o *PortOutput) String() string { return o.port.String() }

// SerialOutput writes raw MIDI bytes to a UART, for hardware MIDI outs.
type SerialOutput struct {
	name string
	port io.WriteCloser
}

func NewSerialOutput(name string, port io.WriteCloser) *SerialOutput {
	return &SerialOutput{name: name, port: port}
}

func OpenSerialOutput(device string, baud int) (*SerialOutput, error) {
	if baud <= 0 {
		baud = MIDIBaudRate
	}
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	return NewSerialOutput(device, p), nil
}

func (o *SerialOutput) Send(msg midi.Message) error {
	n, err := o.port.Write([]byte(msg))
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return nil
}

func (o *SerialOutput) Close() error { return o.port.Close() }

func (o *SerialOutput) String() string { return "serial:" + o.name }

// MultiOutput sends every message to all of its outputs.
type MultiOutput []Output

func (m MultiOutput) Send(msg midi.Message) (errs error) {
	for _, o := range m {
		if err := o.Send(msg); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", o, err))
		}
	}
	return errs
}

func (m MultiOutput) Close() (errs error) {
	for _, o := range m {
		errs = errors.Join(errs, o.Close())
	}
	return errs
}

func (m MultiOutput) String() string {
	names := make([]string, len(m))
	for i, o := range m {
		names[i] = o.String()
	}
	return strings.Join(names, ", ")
}
