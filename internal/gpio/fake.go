package gpio

import "errors"

// FakeBoard is a test double that returns scripted input levels and records
// relay writes.
type FakeBoard struct {
	// Samples contains scripted raw input levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Outputs holds the current level of every relay channel.
	Outputs map[Channel]bool

	// Writes records every successful relay write in order.
	Writes []Write

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// WriteError, if set, will be returned by Write()
	WriteError error

	// ChannelErrors fails writes to individual channels.
	ChannelErrors map[Channel]error
}

// Write is a single recorded relay write.
type Write struct {
	Channel Channel
	On      bool
}

// NewFakeBoard creates a FakeBoard with the given samples and all relays released.
func NewFakeBoard(samples []Sample) *FakeBoard {
	return &FakeBoard{
		Samples: samples,
		Outputs: make(map[Channel]bool),
	}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeBoard) Read() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// SetSample replaces the script with a single sample returned from now on.
func (f *FakeBoard) SetSample(s Sample) {
	f.Samples = []Sample{s}
	f.index = 0
}

// Write records the relay level.
func (f *FakeBoard) Write(ch Channel, on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if err := f.ChannelErrors[ch]; err != nil {
		return err
	}
	f.Outputs[ch] = on
	f.Writes = append(f.Writes, Write{Channel: ch, On: on})
	return nil
}

// Close releases every relay and marks the board as closed.
func (f *FakeBoard) Close() error {
	for _, ch := range Channels {
		f.Outputs[ch] = false
	}
	f.Closed = true
	return nil
}

// Reset resets the board to the beginning of samples with all relays released.
func (f *FakeBoard) Reset() {
	f.index = 0
	f.Closed = false
	f.Outputs = make(map[Channel]bool)
	f.Writes = nil
}
