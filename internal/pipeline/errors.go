package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrInvalidBatchShape = errors.New("invalid batch shape")
)

// BatchShapeError reports a batch whose data field is not a list.
type BatchShapeError struct {
	Received string
}

func (e *BatchShapeError) Error() string {
	return fmt.Sprintf("data must be an array, received %s", e.Received)
}

func (e *BatchShapeError) Unwrap() error { return ErrInvalidBatchShape }

// StoreError wraps a failure of the backing table store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
