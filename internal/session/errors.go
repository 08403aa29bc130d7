package session

import "errors"

// busyError rejects an access request while another one is in flight.
type busyError struct{}

func (busyError) Error() string { return "reader busy: an access operation is already in progress" }

// ErrBusy is returned when an access operation is already pending.
var ErrBusy error = busyError{}

// IsBusy reports whether err indicates a rejected concurrent access request (429).
func IsBusy(err error) bool {
	var b busyError
	return errors.As(err, &b)
}

// ErrStopped is returned by blocking calls once the execution queue has stopped.
var ErrStopped = errors.New("session: stopped")

// ErrNotRunning is returned by Run when the session was built with a custom executor.
var ErrNotRunning = errors.New("session: Run requires the built-in dispatcher")
