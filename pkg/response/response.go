package response

import (
	"net/http"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusFail    = "fail"  // client errors and business rejections
	StatusError   = "error" // server errors
)

// Response is the envelope every endpoint returns
type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Data    any               `json:"data,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	Meta    *Meta             `json:"meta,omitempty"`
}

// Meta describes a page of a list response
type Meta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Pagination bounds
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizePage clamps limit and offset to usable values
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Error codes
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"

	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeRegistrationClosed = "REGISTRATION_CLOSED"
	ErrCodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	ErrCodePaymentFailed      = "PAYMENT_FAILED"
	ErrCodeInvalidSignature   = "INVALID_SIGNATURE"
)

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes
var ErrorCodeToHTTPStatus = map[string]int{
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeUnprocessableEntity: http.StatusUnprocessableEntity,
	ErrCodeTooManyRequests:     http.StatusTooManyRequests,
	ErrCodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeInternalError:       http.StatusInternalServerError,
	ErrCodeServiceUnavailable:  http.StatusServiceUnavailable,
	ErrCodeValidationFailed:    http.StatusBadRequest,
	ErrCodeInsufficientStock:   http.StatusConflict,
	ErrCodeRegistrationClosed:  http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:   http.StatusConflict,
	ErrCodePaymentFailed:       http.StatusBadGateway,
	ErrCodeInvalidSignature:    http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func statusFor(code string) string {
	if GetHTTPStatus(code) >= http.StatusInternalServerError {
		return StatusError
	}
	return StatusFail
}

// --- Builders ---

// Success creates a success response with data
func Success(data any) *Response {
	return &Response{Status: StatusSuccess, Data: data}
}

// SuccessWithMessage creates a success response with a message and data
func SuccessWithMessage(message string, data any) *Response {
	return &Response{Status: StatusSuccess, Message: message, Data: data}
}

// Paginated creates a success response for one page of a list
func Paginated(data any, limit, offset, total int) *Response {
	return &Response{
		Status: StatusSuccess,
		Data:   data,
		Meta:   &Meta{Limit: limit, Offset: offset, Total: total},
	}
}

// Error creates a fail or error response depending on the code's HTTP status
func Error(code, message string) *Response {
	return &Response{Status: statusFor(code), Code: code, Message: message}
}

// ErrorWithDetails creates an error response with per-field details
func ErrorWithDetails(code, message string, details map[string]string) *Response {
	resp := Error(code, message)
	resp.Details = details
	return resp
}

// Rejected creates a business rejection carrying data, such as a validation result
func Rejected(code, message string, data any) *Response {
	resp := Error(code, message)
	resp.Data = data
	return resp
}

// BadRequest creates a bad request response
func BadRequest(message string) *Response {
	return Error(ErrCodeBadRequest, message)
}

// Unauthorized creates an unauthorized response
func Unauthorized(message string) *Response {
	if message == "" {
		message = "Authentication required"
	}
	return Error(ErrCodeUnauthorized, message)
}

// Forbidden creates a forbidden response
func Forbidden(message string) *Response {
	if message == "" {
		message = "Access denied"
	}
	return Error(ErrCodeForbidden, message)
}

// NotFound creates a not found response
func NotFound(message string) *Response {
	if message == "" {
		message = "Resource not found"
	}
	return Error(ErrCodeNotFound, message)
}

// Conflict creates a conflict response
func Conflict(message string) *Response {
	return Error(ErrCodeConflict, message)
}

// InternalError creates an internal error response. Callers never pass
// storage error text here.
func InternalError(message string) *Response {
	if message == "" {
		message = "An internal error occurred"
	}
	return Error(ErrCodeInternalError, message)
}

// ValidationFailed creates a validation error response with field details
func ValidationFailed(message string, details map[string]string) *Response {
	if message == "" {
		message = "Validation failed"
	}
	return ErrorWithDetails(ErrCodeValidationFailed, message, details)
}

// InsufficientStock creates an insufficient stock response
func InsufficientStock(message string) *Response {
	if message == "" {
		message = "Insufficient tickets available"
	}
	return Error(ErrCodeInsufficientStock, message)
}

// RegistrationClosed creates a registration closed response
func RegistrationClosed(message string) *Response {
	if message == "" {
		message = "Registration is closed"
	}
	return Error(ErrCodeRegistrationClosed, message)
}

// TooManyRequests creates a rate limit response
func TooManyRequests(message string) *Response {
	if message == "" {
		message = "Too many requests, please try again later"
	}
	return Error(ErrCodeTooManyRequests, message)
}

// ServiceUnavailable creates a service unavailable response
func ServiceUnavailable(message string) *Response {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return Error(ErrCodeServiceUnavailable, message)
}
