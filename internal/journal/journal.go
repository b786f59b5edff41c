// Package journal keeps an append-only CBOR audit log of controller events.
// The log is never read back into the controller; it exists for post-game
// inspection with --print-journal.
package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/sweeney/crate-controller/internal/crate"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("journal closed")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("journal: encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("journal: decoder mode: %v", err))
	}
}

// Record is one journal entry. Integer keys keep the file compact.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Session   string    `cbor:"2,keyasint"`
	Type      string    `cbor:"3,keyasint"`
	State     string    `cbor:"4,keyasint"`
	Source    string    `cbor:"5,keyasint"`
	Reason    string    `cbor:"6,keyasint,omitempty"`
}

// String renders a record as one log line.
func (r Record) String() string {
	s := fmt.Sprintf("%s %s %-15s state=%s source=%s",
		r.Timestamp.UTC().Format(time.RFC3339Nano), shortSession(r.Session), r.Type, r.State, r.Source)
	if r.Reason != "" {
		s += fmt.Sprintf(" reason=%q", r.Reason)
	}
	return s
}

func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// FromEvent converts a controller event for the given session.
func FromEvent(session string, e crate.Event) Record {
	return Record{
		Timestamp: e.Timestamp,
		Session:   session,
		Type:      string(e.Type),
		State:     string(e.State),
		Source:    string(e.Source),
		Reason:    e.Reason,
	}
}

// Writer appends records to a file. Each process run gets its own session id.
// It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	session string
	closed  bool
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Writer{
		file:    f,
		encoder: encMode.NewEncoder(f),
		session: uuid.NewString(),
	}, nil
}

// Session returns this writer's session id.
func (w *Writer) Session() string {
	return w.session
}

// Write appends e. After Close the record is dropped and ErrClosed returned.
func (w *Writer) Write(e crate.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("write journal %s %s: %w", e.Type, e.Timestamp.Format(time.RFC3339Nano), ErrClosed)
	}
	if err := w.encoder.Encode(FromEvent(w.session, e)); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Close closes the file. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// ReadAll decodes every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := decMode.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("read journal record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}

// ReadFile decodes every record in the file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	return ReadAll(f)
}
