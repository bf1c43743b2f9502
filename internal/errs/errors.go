package errs

import "fmt"

// Status values used across the backend. Handlers and clients switch on
// these, so they are part of the wire contract.
const (
	StatusDLPError      = "DLP_ERROR"
	StatusQuotaError    = "QUOTA_ERROR"
	StatusEmptyResponse = "EMPTY_RESPONSE"
	StatusInternalError = "INTERNAL_ERROR"
)

// BackendError is a structured error value that travels inside an Answer
// instead of crossing subsystem boundaries as a raw error. The redaction and
// failover layers convert every distinguishable failure into one of these.
type BackendError struct {
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	Status string `json:"status"`
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Status, e.Code, e.Msg)
}

// New builds a BackendError with an explicit code, message and status.
func New(code, msg, status string) *BackendError {
	return &BackendError{Code: code, Msg: msg, Status: status}
}

// DLPError marks a request blocked or aborted by the sensitive-data layer.
func DLPError(msg string) *BackendError {
	return &BackendError{Code: "500", Msg: msg, Status: StatusDLPError}
}

// QuotaError marks a request that exhausted every configured region.
func QuotaError(msg string) *BackendError {
	return &BackendError{Code: "500", Msg: msg, Status: StatusQuotaError}
}

// EmptyResponseError marks a generation call that returned zero candidates.
func EmptyResponseError(msg string) *BackendError {
	return &BackendError{Code: "500", Msg: msg, Status: StatusEmptyResponse}
}

// Internal wraps an unexpected failure for the top-level boundary.
func Internal(err error) *BackendError {
	return &BackendError{Code: "500", Msg: err.Error(), Status: StatusInternalError}
}
