package tipflow

import "github.com/wavetip/wavetip-go/types"

// DefaultBatchCeiling 批量授权上限：100 USDC
//
// 授权额度按固定上限申请而不是按单笔金额：一笔额外的授权交易
// 换掉之后 N 次打赏的授权往返，代价是打赏合约拿到更大的存量额度。
const DefaultBatchCeiling types.Amount = 100 * 1_000_000

// AllowanceResolver 判断一次支出是否需要先行授权
type AllowanceResolver struct {
	// Ceiling 授权时申请的批量上限（0 使用 DefaultBatchCeiling）
	Ceiling types.Amount
}

// NeedsApproval 判断是否需要授权
//
// allowance 为 nil 表示额度尚未读到（读取未完成或读取失败），
// 一律按需要授权处理：宁可多一次显式授权，不冒额度不足转账回滚的险。
func (r AllowanceResolver) NeedsApproval(amount types.Amount, allowance *types.Amount) bool {
	return allowance == nil || *allowance < amount
}

// ApprovalAmount 授权交易申请的额度
func (r AllowanceResolver) ApprovalAmount() types.Amount {
	if r.Ceiling == 0 {
		return DefaultBatchCeiling
	}
	return r.Ceiling
}
