package lifecycle

// notFoundError signals an unknown resource id for 404 mapping.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "model not found: " + e.id }

func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether the error indicates a missing resource id.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// conflictError signals an operation invalid for the current phase (409).
type conflictError struct {
	id     string
	reason string
}

func (e conflictError) Error() string { return "conflict for " + e.id + ": " + e.reason }

func ErrConflict(id, reason string) error { return conflictError{id: id, reason: reason} }

func IsConflict(err error) bool {
	_, ok := err.(conflictError)
	return ok
}

// backendFailureError records a failed backend fetch/materialize/release with
// its cause; the resource is always left in a well-defined phase.
type backendFailureError struct {
	id    string
	op    string
	cause error
}

func (e backendFailureError) Error() string {
	return e.op + " failed for " + e.id + ": " + e.cause.Error()
}
func (e backendFailureError) Unwrap() error { return e.cause }

func ErrBackendFailure(id, op string, cause error) error {
	return backendFailureError{id: id, op: op, cause: cause}
}

func IsBackendFailure(err error) bool {
	_, ok := err.(backendFailureError)
	return ok
}

// exhaustedError signals insufficient memory/device capacity (507 mapping).
type exhaustedError struct {
	id    string
	cause error
}

func (e exhaustedError) Error() string {
	return "insufficient capacity for " + e.id + ": " + e.cause.Error()
}
func (e exhaustedError) Unwrap() error { return e.cause }

func ErrResourceExhausted(id string, cause error) error { return exhaustedError{id: id, cause: cause} }

func IsResourceExhausted(err error) bool {
	_, ok := err.(exhaustedError)
	return ok
}

// unavailableError signals a dependency that is not wired up, so callers can
// degrade (503) instead of crashing.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
