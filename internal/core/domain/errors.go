package domain

import "errors"

// Every failure of a phone or call operation wraps exactly one of these.
// Detail is attached with fmt.Errorf("%w: ...", ErrX); callers use errors.Is.
var (
	// ErrIllegalOperation: the operation does not apply to this call's direction or role.
	ErrIllegalOperation = errors.New("illegal operation")
	// ErrIllegalStatus: the operation does not apply in the call's current state.
	ErrIllegalStatus = errors.New("illegal status")
	// ErrServiceFailed: the server rejected the request or the transport failed.
	ErrServiceFailed = errors.New("service failed")
	ErrUnregistered  = errors.New("device not registered")
	ErrCallNotFound  = errors.New("call not found")
)
