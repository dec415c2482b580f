package ui

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

// Status labels used for validation results.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// StatusTag returns the colored marker and label for a status.
func StatusTag(status string) string {
	switch status {
	case StatusSuccess:
		return OKTag() + " " + Green("authenticated")
	case StatusFailure:
		return FailTag() + " " + Red("rejected")
	default:
		return WarnTag() + " " + Yellow("error")
	}
}

// Attributes writes attrs as an aligned name/value table in name order.
// "username" is always listed first.
func Attributes(w io.Writer, attrs map[string]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range SortedKeys(attrs) {
		fmt.Fprintf(tw, "  %s\t%s\n", Dim(k), attrs[k])
	}
	return tw.Flush()
}

// SortedKeys returns the attribute names with "username" first and the
// rest in lexical order.
func SortedKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "username":
			return -1
		case b == "username":
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}

// Duration formats d for humans, rounding to milliseconds.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	return d.Round(time.Millisecond).String()
}

// ShortHash returns the first 12 characters of a hex hash.
func ShortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
