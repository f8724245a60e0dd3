package apperr

import (
	"errors"
	"net/http"
)

// Error 是携带HTTP状态码的业务错误。
// Handler层根据它决定响应状态码和对外暴露的消息，避免内部错误细节泄露给客户端。
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New 创建一个带状态码的业务错误。
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// StatusOf 提取错误对应的HTTP状态码，非业务错误一律视为500。
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// MessageOf 提取可以安全暴露给客户端的错误消息。
// 业务错误保留其具体消息，其余错误统一返回通用提示。
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "服务器内部错误"
}
