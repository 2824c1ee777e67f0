package errors

import sterrors "errors"

var (
	ErrServiceRequired        = sterrors.New("dispatcher: service handle is required")
	ErrHandlerClassesRequired = sterrors.New("dispatcher: at least one entity-handler class is required")
	ErrCallbackRequired       = sterrors.New("dispatcher: handler callback is required")
	ErrActionNameRequired     = sterrors.New("dispatcher: action name is required")
	ErrEventNameRequired      = sterrors.New("dispatcher: event name is required")
	ErrEntityRequired         = sterrors.New("dispatcher: entity definition is required")
	ErrConstructorRequired    = sterrors.New("dispatcher: constructor function is required")
	ErrLoggerRequired         = sterrors.New("dispatcher: logger is required")
	ErrPublisherRequired      = sterrors.New("dispatcher: publisher is required")
	ErrSubscriberRequired     = sterrors.New("dispatcher: subscriber is required")
	ErrTopicRequired          = sterrors.New("dispatcher: topic is required")
)

// ConfigValidationError wraps a configuration problem detected during
// registration, such as a malformed descriptor or an unknown prepend kind.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "dispatcher: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err in a ConfigValidationError. A nil err
// yields nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
