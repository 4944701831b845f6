package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 是面向客户端的业务错误。
//
// Operational 为 true 表示这是预期内、可以原样展示给客户端的失败；
// 其余错误一律只记日志，对外返回不透明的 500。
type Error struct {
	Status      int    // HTTP 状态码
	Message     string // 客户端可见的描述
	Operational bool   // 是否为预期内错误
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New 创建一个 operational 错误。
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message, Operational: true}
}

// Wrap 创建一个 operational 错误并携带底层原因（原因不会出现在响应里）。
func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Operational: true, cause: cause}
}

// 凭证子系统的错误分类，状态码与文案固定，客户端依赖这些值。
var (
	ErrInvalidCredentials = New(http.StatusUnauthorized, "incorrect email or password")
	ErrWrongPassword      = New(http.StatusUnauthorized, "your current password is wrong")
	ErrUnauthenticated    = New(http.StatusUnauthorized, "you are not logged in, please log in to get access")
	ErrForbidden          = New(http.StatusForbidden, "you do not have permission to perform this action")
	ErrResetTokenInvalid  = New(http.StatusBadRequest, "token is invalid or has expired")
	ErrEmailNotFound      = New(http.StatusNotFound, "there is no user with that email address")
	ErrEmailDelivery      = New(http.StatusInternalServerError, "there was an error sending the email, try again later")
)

// BadRequest 构造 400 校验错误。
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

// NotFound 构造 404 错误。
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// AsError 判断 err 是否携带 *Error。
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
