// Package dispatcherr is the dispatcher's error taxonomy: a small, stable
// set of error codes every layer returns instead of ad-hoc errors,
// translated to a fixed HTTP status and JSON body shape at the HTTP
// surface.
package dispatcherr

import "net/http"

// Code is the closed set of stable, user-visible error codes.
type Code string

const (
	CodeConfigError        Code = "CONFIG_ERROR"
	CodeMissingAuthHeader   Code = "MISSING_AUTH_HEADER"
	CodeMalformedAuth       Code = "MALFORMED_AUTH_HEADER"
	CodeForbidden           Code = "FORBIDDEN"
	CodeTenantUnknown       Code = "TENANT_UNKNOWN"
	CodeToolNotFound        Code = "TOOL_NOT_FOUND"
	CodeToolExecutionError  Code = "TOOL_EXECUTION_ERROR"
	CodeTimeout             Code = "TIMEOUT"
	CodeWorkerDisconnected  Code = "WORKER_DISCONNECTED"
	CodeWorkerReplaced      Code = "WORKER_REPLACED"
	CodeClientCancelled     Code = "CLIENT_CANCELLED"
	CodeInvalidPayload      Code = "INVALID_PAYLOAD"
	CodeInternal            Code = "INTERNAL"
)

// Error is the dispatcher's uniform error type. Every HTTP handler
// translates one of these to a JSON body of {"error","code"} plus the
// matching status code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Status maps an error Code to the HTTP status it gets on /api/* routes.
// The description routes remap TenantUnknown to 404 themselves, since the
// same code means "unknown" in both places but gets a different status
// depending on the surface.
func (c Code) Status() int {
	switch c {
	case CodeMissingAuthHeader, CodeMalformedAuth:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTenantUnknown:
		return http.StatusForbidden
	case CodeToolNotFound:
		return http.StatusNotFound
	case CodeToolExecutionError:
		return http.StatusInternalServerError
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeWorkerDisconnected, CodeWorkerReplaced:
		return http.StatusBadGateway
	case CodeClientCancelled:
		return 499
	case CodeInvalidPayload:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Predefined sentinel-style constructors for the errors the router and
// session layer raise most often.
func ToolNotFound(toolName string) *Error {
	return New(CodeToolNotFound, "Tool "+toolName+" not found or no connected worker offers it in this tenant")
}

func ToolExecutionError(workerMsg string) *Error {
	return New(CodeToolExecutionError, workerMsg)
}

func Timeout() *Error {
	return New(CodeTimeout, "invocation timed out waiting for worker reply")
}

func WorkerDisconnected() *Error {
	return New(CodeWorkerDisconnected, "worker session was lost before a reply arrived")
}

func WorkerReplaced() *Error {
	return New(CodeWorkerReplaced, "worker session was replaced by a newer registration")
}

func ClientCancelled() *Error {
	return New(CodeClientCancelled, "client cancelled the request")
}

func ServerShutdown() *Error {
	return New(CodeWorkerDisconnected, "server is shutting down")
}

func MissingAuthHeader() *Error {
	return New(CodeMissingAuthHeader, "missing Authorization header")
}

func MalformedAuth() *Error {
	return New(CodeMalformedAuth, "Authorization header must be 'Bearer <token>'")
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func TenantUnknown() *Error {
	return New(CodeTenantUnknown, "bearer token does not match any configured tenant")
}

func InvalidPayload(message string) *Error {
	return New(CodeInvalidPayload, message)
}

func Internal(message string) *Error {
	return New(CodeInternal, message)
}
