package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorKind 打赏流程错误分类
type ErrorKind string

const (
	// ErrKindValidation 金额非法或非正，本地拦截，不触链
	ErrKindValidation ErrorKind = "VALIDATION"
	// ErrKindInsufficientBalance 已知余额低于请求金额，本地拦截
	ErrKindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	// ErrKindWrongNetwork 当前链不是目标链，提交前拦截，附带切换动作
	ErrKindWrongNetwork ErrorKind = "WRONG_NETWORK"
	// ErrKindUserRejected 签名方拒绝，不自动重试
	ErrKindUserRejected ErrorKind = "USER_REJECTED"
	// ErrKindInsufficientGas 签名方报告无法覆盖网络费用
	ErrKindInsufficientGas ErrorKind = "INSUFFICIENT_GAS"
	// ErrKindReverted 链上执行回滚
	ErrKindReverted ErrorKind = "REVERTED"
	// ErrKindTimeout 确认等待超出期限
	ErrKindTimeout ErrorKind = "TIMEOUT"
	// ErrKindUnclassified 其他失败，保留原始消息兜底，绝不静默吞掉
	ErrKindUnclassified ErrorKind = "UNCLASSIFIED"
)

// TipError 打赏流程统一错误
//
// 所有失败在编排器边界被捕获并转换为 TipError 之一用于展示，
// 不向渲染层抛出未分类异常。
type TipError struct {
	Kind      ErrorKind
	Message   string // 面向用户的消息
	Detail    string // 技术细节（可选）
	TraceID   string
	Timestamp string
	Err       error // 底层错误（可选）
}

func (e *TipError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *TipError) Unwrap() error {
	return e.Err
}

// NewTipError 创建指定分类的错误
func NewTipError(kind ErrorKind, message string) *TipError {
	return &TipError{
		Kind:      kind,
		Message:   message,
		TraceID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WrapTipError 包装底层错误并附上分类
func WrapTipError(kind ErrorKind, message string, err error) *TipError {
	te := NewTipError(kind, message)
	te.Err = err
	if err != nil {
		te.Detail = err.Error()
	}
	return te
}

// IsTipError 检查错误是否为 TipError
func IsTipError(err error) (*TipError, bool) {
	var te *TipError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// 钱包/节点侧的拒绝与失败信号（按消息匹配）
//
// EIP-1193 规定用户拒绝为 code 4001，但各钱包透传到 RPC 错误消息的
// 形式不一，这里按子串匹配兜底。
var (
	rejectionSignals = []string{
		"user rejected",
		"user denied",
		"rejected by user",
		"request rejected",
	}
	gasSignals = []string{
		"insufficient funds for gas",
		"insufficient funds",
		"gas required exceeds",
	}
	revertSignals = []string{
		"execution reverted",
		"transaction failed",
		"status 0",
	}
)

// RPCCoded 携带 JSON-RPC 错误码的错误（client 层实现）
type RPCCoded interface {
	RPCErrorCode() int
}

// Classify 将底层错误归入错误分类
//
// **顺序**：
// 1. 已是 TipError 则原样返回
// 2. EIP-1193 code 4001 → UserRejected
// 3. 超时（context deadline）→ Timeout
// 4. 按消息匹配拒绝 / gas 不足 / 回滚信号
// 5. 其余归 Unclassified，保留原始消息
func Classify(err error) *TipError {
	if err == nil {
		return nil
	}

	if te, ok := IsTipError(err); ok {
		return te
	}

	var coded RPCCoded
	if errors.As(err, &coded) && coded.RPCErrorCode() == 4001 {
		return WrapTipError(ErrKindUserRejected, "transaction rejected in wallet", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return WrapTipError(ErrKindTimeout, "confirmation timed out", err)
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range rejectionSignals {
		if strings.Contains(msg, sig) {
			return WrapTipError(ErrKindUserRejected, "transaction rejected in wallet", err)
		}
	}
	for _, sig := range gasSignals {
		if strings.Contains(msg, sig) {
			return WrapTipError(ErrKindInsufficientGas, "not enough ETH to cover network fees", err)
		}
	}
	for _, sig := range revertSignals {
		if strings.Contains(msg, sig) {
			return WrapTipError(ErrKindReverted, "transaction reverted on chain", err)
		}
	}

	return WrapTipError(ErrKindUnclassified, err.Error(), err)
}
