package tipflow

import (
	"context"
	"fmt"
)

// NetworkGuard 确保交易只在目标链上提交
type NetworkGuard struct {
	required uint64
	chain    interface {
		ChainID(ctx context.Context) (uint64, error)
	}
	switcher NetworkSwitcher // 可选
}

// NewNetworkGuard 创建 NetworkGuard；switcher 可为 nil（无切换能力的环境）
func NewNetworkGuard(required uint64, chain interface {
	ChainID(ctx context.Context) (uint64, error)
}, switcher NetworkSwitcher) *NetworkGuard {
	return &NetworkGuard{
		required: required,
		chain:    chain,
		switcher: switcher,
	}
}

// RequiredNetwork 目标链 ID
func (g *NetworkGuard) RequiredNetwork() uint64 {
	return g.required
}

// CurrentNetwork 读取当前链 ID
func (g *NetworkGuard) CurrentNetwork(ctx context.Context) (uint64, error) {
	return g.chain.ChainID(ctx)
}

// IsRequired 判断给定链是否目标链
func (g *NetworkGuard) IsRequired(chainID uint64) bool {
	return chainID == g.required
}

// RequestSwitch 请求钱包切换到目标链
//
// fire-and-forget：不确认切换成功，调用方事后重新读 CurrentNetwork。
func (g *NetworkGuard) RequestSwitch(ctx context.Context) error {
	if g.switcher == nil {
		return fmt.Errorf("network switch not supported in this environment")
	}
	return g.switcher.RequestSwitch(ctx, g.required)
}
