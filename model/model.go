package model

import (
	"encoding/json"
	"time"

	"tailplane/descriptor"
)

// Snapshot records one load of the watched descriptor file.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Checksum  string    `json:"checksum"`

	Schema     string                  `json:"schema,omitempty"`
	Descriptor json.RawMessage         `json:"descriptor,omitempty"`
	Warnings   []descriptor.Diagnostic `json:"warnings,omitempty"`
	Errors     []descriptor.Diagnostic `json:"errors,omitempty"`

	// LoadError is set when the file could not be loaded at all.
	LoadError string `json:"load_error,omitempty"`
}

// OK reports whether the snapshot loaded and validated without errors.
func (s Snapshot) OK() bool {
	return s.LoadError == "" && len(s.Errors) == 0
}
