package models

import "fmt"

// DataFormatError reports a malformed roster or room row. It is fatal: the
// run aborts before anything is allocated or written.
type DataFormatError struct {
	// Source names where the row came from (a table, a file path).
	Source string
	// Row is the 1-based row number, or 0 when not row specific.
	Row    int
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("data format: %s row %d: %s", e.Source, e.Row, e.Reason)
	}
	return fmt.Sprintf("data format: %s: %s", e.Source, e.Reason)
}

// ConfigurationError reports an unusable setup such as an empty room set.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// PublicationError reports a sink or notifier failure after a valid
// allocation was computed. It is collected, never fatal.
type PublicationError struct {
	// Stage is "sink", "notify" or "record".
	Stage  string
	Target string
	Err    error
}

func (e *PublicationError) Error() string {
	return fmt.Sprintf("publish %s %s: %v", e.Stage, e.Target, e.Err)
}

func (e *PublicationError) Unwrap() error {
	return e.Err
}
