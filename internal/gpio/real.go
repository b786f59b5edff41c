//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "crate-controller"

// RealBoard drives actual hardware using Linux GPIO character device.
type RealBoard struct {
	chip    *gpiocdev.Chip
	inputs  *gpiocdev.Lines // lock, override, reset
	outputs map[Channel]*gpiocdev.Line
	closed  bool
}

// NewRealBoard opens the named chip and requests every line in pins.
// All relays start released.
func NewRealBoard(chipName string, pins Pins) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	b := &RealBoard{
		chip:    chip,
		outputs: make(map[Channel]*gpiocdev.Line),
	}

	// Inputs are switched to ground, so hold them high when open.
	inputs, err := chip.RequestLines(
		[]int{pins.Lock, pins.Override, pins.Reset},
		gpiocdev.AsInput, gpiocdev.WithPullUp,
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request input pins %d,%d,%d: %w", pins.Lock, pins.Override, pins.Reset, err)
	}
	b.inputs = inputs

	for _, ch := range Channels {
		pin := pins.Output(ch)
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", ch, pin, err)
		}
		b.outputs[ch] = line
	}

	return b, nil
}

// Read returns the raw input levels.
func (b *RealBoard) Read() (Sample, error) {
	values := make([]int, 3)
	if err := b.inputs.Values(values); err != nil {
		return Sample{}, fmt.Errorf("read input pins: %w", err)
	}
	return Sample{
		Lock:     values[0] == 1,
		Override: values[1] == 1,
		Reset:    values[2] == 1,
	}, nil
}

// Write drives a relay line.
func (b *RealBoard) Write(ch Channel, on bool) error {
	line, ok := b.outputs[ch]
	if !ok {
		return fmt.Errorf("write %s: line not requested", ch)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write %s: %w", ch, err)
	}
	return nil
}

// Close releases every relay, then returns all lines to input with pull-down
// (matching Pi boot defaults) before closing, so the actuator cannot be left
// energised across a restart. Calls after the first do nothing.
func (b *RealBoard) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error

	for _, ch := range Channels {
		line, ok := b.outputs[ch]
		if !ok {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", ch, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", ch, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", ch, err))
		}
	}
	if b.inputs != nil {
		if err := b.inputs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close inputs: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
