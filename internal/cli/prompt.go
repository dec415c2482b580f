package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadPassword reads a password from in. When in is a terminal the prompt
// is written to out and input is hidden. Otherwise a single line is read
// and prompt is not shown.
func ReadPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(out, prompt+": ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out) // Add newline after hidden input
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return ReadLine(in)
}

// ReadLine reads one line from r without its line ending. Only the line
// ending is removed; leading and trailing spaces are part of the value.
func ReadLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	switch {
	case err == io.EOF && line == "":
		return "", errors.New("failed to read password: no input")
	case err != nil && err != io.EOF:
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}
