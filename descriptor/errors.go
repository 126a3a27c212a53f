package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Discover when a directory has no config file.
var ErrNotFound = errors.New("no config file found")

// MalformedConfigError reports a structural problem in the persisted form.
type MalformedConfigError struct {
	Field  string
	Line   int
	Reason string
}

func (e *MalformedConfigError) Error() string {
	var b strings.Builder
	b.WriteString("malformed config")
	if e.Field != "" {
		b.WriteString(" at ")
		b.WriteString(e.Field)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// DuplicateKeyError reports a key defined twice in one mapping.
type DuplicateKeyError struct {
	Field     string
	Key       string
	Line      int
	FirstLine int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q in %s at line %d (first defined at line %d)", e.Key, e.Field, e.Line, e.FirstLine)
}

// AmbiguousMigrationError is returned when content and purge are both
// populated with different globs.
type AmbiguousMigrationError struct {
	Content []string
	Legacy  []string
}

func (e *AmbiguousMigrationError) Error() string {
	return fmt.Sprintf("ambiguous migration: content %v and purge %v are both set and differ", e.Content, e.Legacy)
}

func malformed(field string, line int, format string, args ...any) error {
	return &MalformedConfigError{Field: field, Line: line, Reason: fmt.Sprintf(format, args...)}
}
