package client

import "fmt"

// Error 客户端错误
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 错误码定义
const (
	ErrCodeNetwork         = 1000 // 网络错误
	ErrCodeTimeout         = 1001 // 超时错误
	ErrCodeInvalidResponse = 1002 // 无效响应
	ErrCodeNotSupported    = 1003 // 不支持的操作
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{Code: ErrCodeNetwork, Message: "network error", Err: err}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(message string) *Error {
	return &Error{Code: ErrCodeInvalidResponse, Message: message}
}

// NewNotSupportedError 创建不支持的操作错误
func NewNotSupportedError(operation string) *Error {
	return &Error{Code: ErrCodeNotSupported, Message: fmt.Sprintf("operation not supported: %s", operation)}
}

// HTTPStatusError 非 200 的 HTTP 响应
//
// 保留状态码：重试判定按状态码区分瞬时失败（5xx、429）和确定失败。
type HTTPStatusError struct {
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.Status)
}

// RPCError 节点返回的 JSON-RPC 错误
//
// 保留原始 code：EIP-1193 的用户拒绝（4001）、execution reverted（-32000 系）
// 等都要透传给上层分类，不在传输层吞掉。
type RPCError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// RPCErrorCode 返回 JSON-RPC 错误码（types.RPCCoded）
func (e *RPCError) RPCErrorCode() int {
	return e.Code
}
