package crawler

import "fmt"

// NetworkError reports a transport-level failure while fetching a page:
// DNS, connection, TLS, timeout or an unreadable body. HTTP error statuses
// are not NetworkErrors; their bodies are returned to the caller.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("HTTP request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
