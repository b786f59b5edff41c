package gpio

import "fmt"

// Relay is a single relay output on a Board. It remembers the last level
// written so callers can read it back without touching hardware.
// Not safe for concurrent use; the control loop owns it.
type Relay struct {
	board Board
	ch    Channel
	on    bool
}

// NewRelay returns the output port for ch. The relay is assumed released.
func NewRelay(board Board, ch Channel) *Relay {
	return &Relay{board: board, ch: ch}
}

// Set drives the relay. On a write failure the remembered level is left
// unchanged, so a stuck driver shows up in the status snapshot.
func (r *Relay) Set(on bool) error {
	if err := r.board.Write(r.ch, on); err != nil {
		return fmt.Errorf("set %s=%v: %w", r.ch, on, err)
	}
	r.on = on
	return nil
}

// State returns the last level successfully written.
func (r *Relay) State() bool {
	return r.on
}

// Channel returns the relay's channel.
func (r *Relay) Channel() Channel {
	return r.ch
}
