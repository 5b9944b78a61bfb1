package delegate

import (
	"errors"
	"fmt"
)

// Failures a delegated request can end in. Both wrap the underlying cause.
var (
	// ErrBackend indicates the foreign language server failed the call or
	// could not be reached.
	ErrBackend = errors.New("foreign backend error")

	// ErrCancelled indicates the request was cancelled before it completed.
	ErrCancelled = errors.New("request cancelled")

	// ErrUnavailable indicates no language server is running for a known
	// language. It is reported wrapped in ErrBackend.
	ErrUnavailable = errors.New("no language server for language")
)

// ContractViolation is the panic value raised when a collaborator breaks the
// delegation contract: an unknown language reaching the dispatcher, or a
// response shape the request kind does not accept.
type ContractViolation struct {
	Msg string
}

func (c ContractViolation) Error() string {
	return "delegation contract violation: " + c.Msg
}

func violate(format string, args ...any) {
	panic(ContractViolation{Msg: fmt.Sprintf(format, args...)})
}
