package tipflow

import "github.com/wavetip/wavetip-go/types"

// OptimisticLedger 乐观余额账本
//
// 转账提交后、链上确认前，把在途金额从展示余额里预先扣掉。
// 只用于展示：任何终态（成功、拒绝、失败、超时）都会清掉调整并
// 重新读链上真实余额，乐观值从不当作权威数据。
//
// 不变式：只有转账阶段记调整，授权阶段不动余额。
type OptimisticLedger struct {
	pending *types.Amount // 在途扣减
}

// ApplyPending 记录在途扣减并返回调整后的展示余额
func (l *OptimisticLedger) ApplyPending(lastKnown, amount types.Amount) types.Amount {
	l.pending = &amount
	return l.DisplayedBalance(lastKnown)
}

// Clear 清除在途扣减
func (l *OptimisticLedger) Clear() {
	l.pending = nil
}

// HasPending 是否存在在途扣减
func (l *OptimisticLedger) HasPending() bool {
	return l.pending != nil
}

// DisplayedBalance 展示余额：有在途扣减时返回调整值，否则返回已知余额
func (l *OptimisticLedger) DisplayedBalance(lastKnown types.Amount) types.Amount {
	if l.pending == nil {
		return lastKnown
	}
	if *l.pending > lastKnown {
		return 0
	}
	return lastKnown - *l.pending
}
