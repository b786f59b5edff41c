package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/crate-controller/internal/crate"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")

	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(crate.Event{Timestamp: t0, Type: crate.EventOpen, State: crate.StateOpening, Source: crate.SourceButton}))
	require.NoError(t, w.Write(crate.Event{
		Timestamp: t0.Add(15 * time.Second),
		Type:      crate.EventTimeout,
		State:     crate.StateIdle,
		Source:    crate.SourceTimeout,
		Reason:    "assumed open motion stop",
	}))
	require.NoError(t, w.Close())

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "OPEN", records[0].Type)
	assert.Equal(t, "OPENING", records[0].State)
	assert.Equal(t, "button", records[0].Source)
	assert.True(t, records[0].Timestamp.Equal(t0))
	assert.Equal(t, w.Session(), records[0].Session)

	assert.Equal(t, "TIMEOUT", records[1].Type)
	assert.Equal(t, "assumed open motion stop", records[1].Reason)
}

func TestSessionIsUUID(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "journal.cbor"))
	require.NoError(t, err)
	defer w.Close()

	_, err = uuid.Parse(w.Session())
	assert.NoError(t, err)
}

func TestAppendsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")

	w1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w1.Write(crate.Event{Timestamp: t0, Type: crate.EventClose}))
	require.NoError(t, w1.Close())

	w2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w2.Write(crate.Event{Timestamp: t0.Add(time.Minute), Type: crate.EventStop}))
	require.NoError(t, w2.Close())

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].Session, records[1].Session)
	assert.Equal(t, "CLOSE", records[0].Type)
	assert.Equal(t, "STOP", records[1].Type)
}

func TestWriteAfterCloseReturnsErrClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.cbor")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.Write(crate.Event{Timestamp: t0, Type: crate.EventOpen})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Contains(t, err.Error(), "OPEN")

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadAllEmpty(t *testing.T) {
	records, err := ReadAll(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadAllTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encMode.NewEncoder(&buf).Encode(FromEvent("s", crate.Event{Timestamp: t0, Type: crate.EventOpen})))
	data := buf.Bytes()
	data = append(data, data[:len(data)/2]...)

	records, err := ReadAll(bytes.NewReader(data))
	assert.Error(t, err)
	assert.Len(t, records, 1)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.cbor"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRecordString(t *testing.T) {
	rec := Record{
		Timestamp: t0,
		Session:   "0123456789abcdef",
		Type:      "DENIED",
		State:     "IDLE",
		Source:    "command",
		Reason:    "locked, cannot open",
	}

	assert.Equal(t,
		`2026-01-01T12:00:00Z 01234567 DENIED          state=IDLE source=command reason="locked, cannot open"`,
		rec.String())
}
