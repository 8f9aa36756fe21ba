package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	Reason:    "OK",
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// Common request errors (Category: 01)
var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		Reason:    "VALIDATION_FAILED",
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrValidation indicates one or more fields failed validation.
	ErrValidation = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		Reason:    "VALIDATION_FAILED",
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Validation failed",
		MessageZH: "验证失败",
	})
)

// Authentication and authorization errors (Categories: 02, 03)
var (
	// ErrUnauthorized indicates the request carries no valid identity.
	ErrUnauthorized = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryAuth, 0),
		Reason:    "UNAUTHORIZED",
		HTTP:      http.StatusUnauthorized,
		GRPCCode:  codes.Unauthenticated,
		MessageEN: "Unauthorized",
		MessageZH: "未认证",
	})

	// ErrForbidden indicates the caller may not touch this resource.
	ErrForbidden = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryPermission, 0),
		Reason:    "FORBIDDEN",
		HTTP:      http.StatusForbidden,
		GRPCCode:  codes.PermissionDenied,
		MessageEN: "Forbidden",
		MessageZH: "无权限",
	})
)

// Resource errors (Categories: 04, 05)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 0),
		Reason:    "NOT_FOUND",
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	// ErrConflict indicates the resource already exists or the update races
	// with another writer.
	ErrConflict = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryConflict, 0),
		Reason:    "CONFLICT",
		HTTP:      http.StatusConflict,
		GRPCCode:  codes.AlreadyExists,
		MessageEN: "Resource conflict",
		MessageZH: "资源冲突",
	})
)

// Server errors (Categories: 07, 08, 10, 11)
var (
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		Reason:    "INTERNAL_ERROR",
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "内部服务器错误",
	})

	// ErrDatabase indicates a database operation failed.
	ErrDatabase = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryDatabase, 0),
		Reason:    "INTERNAL_ERROR",
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Database error",
		MessageZH: "数据库错误",
	})

	// ErrUpstreamUnavailable indicates a dependent provider rejected the
	// request or could not be reached.
	ErrUpstreamUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNetwork, 0),
		Reason:    "UPSTREAM_UNAVAILABLE",
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Upstream service unavailable",
		MessageZH: "上游服务不可用",
	})

	// ErrUpstreamTimeout indicates a dependent provider did not answer in time.
	ErrUpstreamTimeout = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryTimeout, 0),
		Reason:    "UPSTREAM_TIMEOUT",
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Upstream service timeout",
		MessageZH: "上游服务超时",
	})
)
