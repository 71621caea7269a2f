package apperror

// AppError is a custom error type that includes an HTTP status code and an optional internal error code.
type AppError struct {
	Code      int    // HTTP Status Code (e.g., 400, 404)
	Message   string // User-facing error message
	Err       error  // The underlying error, if any (not exposed to user)
	Details   any    // Optional structured payload returned alongside the message
	Retryable bool   // The caller may safely repeat the request
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewRetryable creates an AppError that tells clients to try again.
func NewRetryable(code int, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails copies a sentinel AppError and attaches details to the copy.
// errors.Is(copy, sentinel) stays true.
func WithDetails(sentinel *AppError, details any) *AppError {
	return &AppError{
		Code:      sentinel.Code,
		Message:   sentinel.Message,
		Err:       sentinel,
		Details:   details,
		Retryable: sentinel.Retryable,
	}
}
