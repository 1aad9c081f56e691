package catalog

import (
	"errors"
	"fmt"
)

// ErrTransport marks any failure talking to the catalog: network, status or decoding.
var ErrTransport = errors.New("catalog transport error")

// StatusError reports a non-success HTTP status from the catalog.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Is makes every StatusError match ErrTransport.
func (e *StatusError) Is(target error) bool { return target == ErrTransport }

// TransportError wraps err so that it matches ErrTransport while keeping the cause.
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTransport) {
		return err
	}

	return fmt.Errorf("catalog %s: %w", op, errors.Join(ErrTransport, err))
}
