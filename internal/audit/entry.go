// Package audit keeps a tamper-evident record of validation attempts.
//
// Entries are hash-chained: each entry's hash covers its sequence number,
// timestamp, type, data and the previous entry's hash, so editing or
// removing a stored row breaks verification of every later entry.
package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/majorcontext/restpcv/internal/log"
)

// EntryType identifies the kind of log entry.
type EntryType string

const (
	EntryValidation EntryType = "validation"
	EntrySecret     EntryType = "secret"
)

// FirstSequence is the sequence number of the first entry in a log.
// Sequences are 1-indexed to distinguish "no previous entry" (seq=0) from the first entry.
const FirstSequence uint64 = 1

// ValidationData holds one validation attempt. Passwords and attribute
// values are never recorded.
type ValidationData struct {
	AttemptID  string `json:"attempt_id"`
	Username   string `json:"username"`
	Outcome    string `json:"outcome"` // "success", "failure" or "error"
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// SecretData holds secret resolution entry data.
type SecretData struct {
	Name    string `json:"name"`    // placeholder name, e.g. "api_key"
	Backend string `json:"backend"` // reference scheme, e.g. "op", "awssm"
	// Note: value is never logged
}

// Entry represents a single hash-chained log entry.
type Entry struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      EntryType `json:"type"`
	PrevHash  string    `json:"prev"`
	Data      any       `json:"data"`
	Hash      string    `json:"hash"`
	// dataJSON is the exact encoding that was hashed. Entries read back from
	// the store keep it so verification does not depend on re-marshaling.
	dataJSON []byte
}

// NewEntry creates a new entry with computed hash.
func NewEntry(seq uint64, prevHash string, entryType EntryType, data any) *Entry {
	return newEntryWithTimestamp(seq, prevHash, entryType, data, time.Now().UTC())
}

func newEntryWithTimestamp(seq uint64, prevHash string, entryType EntryType, data any, ts time.Time) *Entry {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Warn("failed to marshal entry data", "type", entryType, "error", err)
		dataJSON = []byte("null")
	}
	e := &Entry{
		Sequence:  seq,
		Timestamp: ts,
		Type:      entryType,
		PrevHash:  prevHash,
		Data:      data,
		dataJSON:  dataJSON,
	}
	e.Hash = e.computeHash()
	return e
}

// computeHash calculates SHA-256(seq || ts || type || prev || data).
func (e *Entry) computeHash() string {
	h := sha256.New()

	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, e.Sequence)
	h.Write(seqBytes)

	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.PrevHash))

	dataBytes := e.dataJSON
	if dataBytes == nil {
		var err error
		dataBytes, err = json.Marshal(e.Data)
		if err != nil {
			log.Warn("failed to marshal entry data for hash", "seq", e.Sequence, "error", err)
			dataBytes = []byte("null")
		}
	}
	h.Write(dataBytes)

	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks if the entry's hash is valid.
func (e *Entry) Verify() bool {
	return e.Hash == e.computeHash()
}

// Validation decodes the entry's data as ValidationData.
func (e *Entry) Validation() (ValidationData, error) {
	var v ValidationData
	raw := e.dataJSON
	if raw == nil {
		var err error
		if raw, err = json.Marshal(e.Data); err != nil {
			return v, err
		}
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
