package scrape

import "fmt"

// NetworkError covers connection failures, timeouts, and 5xx responses from
// the static fetcher. It is transient: the fetcher retries it up to the
// configured budget before surfacing it.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient marks the error as retryable.
func (e *NetworkError) Transient() bool { return true }

// StatusError is a non-2xx, non-5xx response (e.g. 404). It fails the fetch
// immediately without retry.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Transient reports false: client errors do not resolve on retry.
func (e *StatusError) Transient() bool { return false }

// ParseError indicates an expected structural marker was absent in a
// document. It is logged and the record skipped, never propagated upward.
type ParseError struct {
	URL      string
	Selector string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: no match for %q", e.URL, e.Selector)
}

// DriverError indicates the browser process failed to launch or crashed.
// It is fatal for the dynamic-scrape pass; there is no static fallback.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
