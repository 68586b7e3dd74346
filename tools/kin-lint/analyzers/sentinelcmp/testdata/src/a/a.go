package a

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("not found")

var ErrCount = 3

func bad(err error) bool {
	if err == ErrNotFound { // want "comparison with ErrNotFound - use errors.Is"
		return true
	}
	return io.ErrUnexpectedEOF != err // want "comparison with ErrUnexpectedEOF - use errors.Is"
}

func good(err error, n int) bool {
	if err == nil {
		return false
	}
	if n == ErrCount {
		return false
	}
	return errors.Is(err, ErrNotFound)
}
