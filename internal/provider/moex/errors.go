package moex

import (
	"errors"
	"fmt"
)

// TransportError is a network failure or a non-2xx answer from ISS.
type TransportError struct {
	URL    string
	Status int // 0 when the request never got a response
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("moex: %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("moex: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataAbsentError is a well-formed answer that lacks the block, column or row we need.
type DataAbsentError struct {
	What string
	Err  error
}

func (e *DataAbsentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("moex: no data: %s: %v", e.What, e.Err)
	}
	return "moex: no data: " + e.What
}

func (e *DataAbsentError) Unwrap() error { return e.Err }

func absent(format string, args ...any) error {
	return &DataAbsentError{What: fmt.Sprintf(format, args...)}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDataAbsent reports whether err is (or wraps) a DataAbsentError.
func IsDataAbsent(err error) bool {
	var de *DataAbsentError
	return errors.As(err, &de)
}
