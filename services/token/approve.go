package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wavetip/wavetip-go/services"
	"github.com/wavetip/wavetip-go/types"
	"github.com/wavetip/wavetip-go/wallet"
)

// Approve 提交授权交易
//
// **说明**：
// - 授权不改变余额，只扩大 spender 的可扣划上限
// - 金额由调用方决定（编排器传入批量上限而非单笔金额）
func (s *tokenService) Approve(ctx context.Context, spender common.Address, amount types.Amount, wallets ...wallet.Wallet) (common.Hash, error) {
	// 1. 参数验证
	if spender == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("spender address is empty")
	}
	if amount == 0 {
		return common.Hash{}, fmt.Errorf("approve amount must be greater than 0")
	}

	w := s.getWallet(wallets...)
	if w == nil {
		return common.Hash{}, fmt.Errorf("wallet is required")
	}

	// 2. 编码调用数据
	data, err := erc20ABI.Pack("approve", spender, amount.BigInt())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve failed: %w", err)
	}

	// 3. 构建、签名并提交
	return services.SubmitCall(ctx, s.client, w, s.config.ChainID, s.contract, data)
}
