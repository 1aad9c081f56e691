package errors

// Error codes for the bus contracts. Keep stable; used across adapters, bus and transport layers.
const (
	ErrCodeUnknownHandler      = "servicebus.unknown_handler"
	ErrCodeInvalidHandler      = "servicebus.invalid_handler"
	ErrCodeHandlerTypeMismatch = "servicebus.handler_type_mismatch"
	ErrCodeAsyncNotConfigured  = "servicebus.async_not_configured"
	ErrCodePublishFailed       = "servicebus.publish_failed"
	ErrCodeSerializationFailed = "servicebus.serialization_failed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

// Code reports the stable code carried by the error.
func (e codedError) Code() string { return string(e) }

// CodeOf walks the wrap chain and returns the first stable code found, or "".
func CodeOf(err error) string {
	for err != nil {
		if c, ok := err.(interface{ Code() string }); ok {
			return c.Code()
		}

		switch x := err.(type) {
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		case interface{ Unwrap() []error }:
			for _, e := range x.Unwrap() {
				if c := CodeOf(e); c != "" {
					return c
				}
			}

			return ""
		default:
			return ""
		}
	}

	return ""
}

var (
	ErrUnknownHandler      = Code(ErrCodeUnknownHandler)
	ErrInvalidHandler      = Code(ErrCodeInvalidHandler)
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	ErrAsyncNotConfigured  = Code(ErrCodeAsyncNotConfigured)
	ErrPublishFailed       = Code(ErrCodePublishFailed)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
)
