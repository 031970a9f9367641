// errors.go defines the error taxonomy callers of the broker client observe.
//
// Four kinds, matched with errors.As:
//
//   - ValidationError: malformed symbol, quantity, exchange, or price.
//     Rejected before any I/O, never retried.
//   - AuthError: 401 or explicit token failure. The client clears its token
//     and retries the request exactly once; a second 401 surfaces as this.
//   - BrokerError: non-zero broker response code or HTTP 5xx. Transient.
//   - OrderError: the broker rejected the order itself (insufficient funds,
//     halted symbol, account limits). Final for that symbol, not retried.
package broker

import "fmt"

// ValidationError is a request the client refused to send.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "broker validation: " + e.Msg
}

// AuthError is a token or credential failure.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return "broker auth: " + e.Msg
}

// BrokerError is a transient transport or API failure.
type BrokerError struct {
	Status int    // HTTP status, 0 if the failure was at the API level
	Code   string // broker message code, if any
	Msg    string
}

func (e *BrokerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("broker error [%s]: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("broker error (status %d): %s", e.Status, e.Msg)
}

// OrderError is a final per-order rejection.
type OrderError struct {
	Code string
	Msg  string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order rejected [%s]: %s", e.Code, e.Msg)
}
