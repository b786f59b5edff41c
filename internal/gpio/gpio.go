// Package gpio provides the prop's digital inputs and relay outputs with
// hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sample is one reading of the raw input levels (true = high).
// Buttons and the latch switch pull their line low when active, so a press
// reads as false.
type Sample struct {
	Lock     bool // lock/latch sense; high = latched
	Override bool // override button
	Reset    bool // reset button
}

// Channel identifies a relay output.
type Channel int

const (
	ChannelForward Channel = iota // crate drive, closing direction
	ChannelReverse                // crate drive, opening direction
	ChannelDrawerLock
	ChannelSpare
)

// Channels lists every relay output in wiring order.
var Channels = []Channel{ChannelForward, ChannelReverse, ChannelDrawerLock, ChannelSpare}

func (c Channel) String() string {
	switch c {
	case ChannelForward:
		return "forward"
	case ChannelReverse:
		return "reverse"
	case ChannelDrawerLock:
		return "drawer-lock"
	case ChannelSpare:
		return "spare"
	}
	return "unknown"
}

// Board reads the prop's inputs and drives its relays.
type Board interface {
	// Read returns the raw input levels.
	Read() (Sample, error)

	// Write energises (true) or releases (false) a relay.
	Write(ch Channel, on bool) error

	// Close releases all relays and GPIO resources.
	Close() error
}

// Pins holds BCM line offsets for every input and output.
type Pins struct {
	Forward    int `yaml:"forward"`
	Reverse    int `yaml:"reverse"`
	DrawerLock int `yaml:"drawer_lock"`
	Spare      int `yaml:"spare"`
	Lock       int `yaml:"lock"`
	Override   int `yaml:"override"`
	Reset      int `yaml:"reset"`
}

// Default pin assignments (BCM numbering), matching the relay HAT wiring.
const (
	DefaultPinForward    = 5
	DefaultPinReverse    = 6
	DefaultPinDrawerLock = 13
	DefaultPinSpare      = 19
	DefaultPinLock       = 17
	DefaultPinOverride   = 27
	DefaultPinReset      = 22
)

// DefaultPins returns the default pin assignments.
func DefaultPins() Pins {
	return Pins{
		Forward:    DefaultPinForward,
		Reverse:    DefaultPinReverse,
		DrawerLock: DefaultPinDrawerLock,
		Spare:      DefaultPinSpare,
		Lock:       DefaultPinLock,
		Override:   DefaultPinOverride,
		Reset:      DefaultPinReset,
	}
}

// Output returns the line offset for a relay channel.
func (p Pins) Output(ch Channel) int {
	switch ch {
	case ChannelForward:
		return p.Forward
	case ChannelReverse:
		return p.Reverse
	case ChannelDrawerLock:
		return p.DrawerLock
	case ChannelSpare:
		return p.Spare
	}
	return -1
}
