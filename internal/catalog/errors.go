package catalog

import "fmt"

// NetworkError is a transport failure or a non-2xx response from a catalog API.
type NetworkError struct {
	Path   string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: unexpected status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("catalog %s: %v", e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a catalog payload that does not have the expected shape.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
