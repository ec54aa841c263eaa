package dataset

import "fmt"

// LoadError reports a source that could not be read or lacks required columns.
// It is fatal to the session: no partial dataset is served.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dataset: load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(source string, err error) error {
	return &LoadError{Source: source, Err: err}
}
