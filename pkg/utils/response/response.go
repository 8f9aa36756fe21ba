// Package response provides the unified API response envelope.
// Every HTTP endpoint answers with this structure so clients can switch
// on the stable code string regardless of which handler produced it.
package response

import (
	"net/http"

	"github.com/kart-io/ragx/pkg/utils/errors"
)

// Response is the unified API response envelope.
type Response struct {
	// Status mirrors the HTTP status code of the reply
	Status int `json:"status"`

	// Code is the stable machine-readable code, "OK" on success
	Code string `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// IsSuccess is true only for 2xx replies
	IsSuccess bool `json:"isSuccess"`

	// Result contains the response payload (nil for errors)
	Result interface{} `json:"result"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// PageData represents paginated data.
type PageData struct {
	// List contains the data items
	List interface{} `json:"list"`

	// Total is the total number of items
	Total int64 `json:"total"`

	// Page is the current page number (1-based)
	Page int `json:"page"`

	// PageSize is the number of items per page
	PageSize int `json:"page_size"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Status:    http.StatusOK,
		Code:      errors.OK.Reason,
		Message:   "success",
		IsSuccess: true,
		Result:    data,
	}
}

// SuccessWithMessage creates a successful response with custom message.
func SuccessWithMessage(message string, data interface{}) *Response {
	r := Success(data)
	r.Message = message
	return r
}

// Created creates a successful creation response.
func Created(data interface{}) *Response {
	r := Success(data)
	r.Status = http.StatusCreated
	return r
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Status:  e.HTTPStatus(),
		Code:    e.Reason,
		Message: e.MessageEN,
	}
}

// ErrWithLang creates an error response with language-specific message.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	r := Err(e)
	if e != nil {
		r.Message = e.Message(lang)
	}
	return r
}

// FromError converts any error into an error response.
func FromError(err error) *Response {
	return Err(errors.FromError(err))
}

// Page creates a paginated response.
func Page(list interface{}, total int64, page, pageSize int) *Response {
	return Success(&PageData{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.Status != 0 {
		return r.Status
	}
	if r.IsSuccess {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
