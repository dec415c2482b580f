package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Credential is one line of a batch file:
//
//	{"username": "alice", "password": "s3cret"}
type Credential struct {
	Line     int    `json:"-"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LineError reports a batch line that could not be parsed.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// maxLineBytes bounds a single batch line.
const maxLineBytes = 1 << 20

// ReadCredentials parses JSON Lines from r. Blank lines and lines starting
// with "#" are skipped. Parsing stops at the first malformed line.
func ReadCredentials(r io.Reader) ([]Credential, error) {
	var creds []Credential
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		dec.DisallowUnknownFields()
		var c Credential
		if err := dec.Decode(&c); err != nil {
			return nil, &LineError{Line: n, Err: err}
		}
		c.Line = n
		creds = append(creds, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	return creds, nil
}
