package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteAPIError is a non-2xx response from a partner API.
type RemoteAPIError struct {
	System string
	Method string
	URL    string
	Status int
	Body   string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("%s %s %s: status %d: %s", e.System, e.Method, e.URL, e.Status, e.Body)
}

// TransportError is a failure to complete the HTTP exchange at all.
type TransportError struct {
	System string
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.System, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsStatus reports whether err is a RemoteAPIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsNotFound reports whether err is a 404 from a partner API.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// trips reports whether err counts against the circuit breaker. Client errors
// (4xx) describe a bad request, not an unhealthy partner.
func trips(err error) bool {
	var apiErr *RemoteAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}
