package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wavetip/wavetip-go/types"
)

// BalanceOf 查询余额
func (s *tokenService) BalanceOf(ctx context.Context, account common.Address) (types.Amount, error) {
	return s.readAmount(ctx, "balanceOf", account)
}

// Allowance 查询授权额度
func (s *tokenService) Allowance(ctx context.Context, owner, spender common.Address) (types.Amount, error) {
	return s.readAmount(ctx, "allowance", owner, spender)
}

// Decimals 查询代币小数位数
func (s *tokenService) Decimals(ctx context.Context) (uint8, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals failed: %w", err)
	}

	out, err := s.client.CallContract(ctx, s.contract, data)
	if err != nil {
		return 0, fmt.Errorf("call decimals failed: %w", err)
	}

	results, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals failed: %w", err)
	}
	decimals, ok := results[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("invalid decimals type %T", results[0])
	}
	return decimals, nil
}

// readAmount 调用返回 uint256 金额的只读方法
func (s *tokenService) readAmount(ctx context.Context, method string, args ...interface{}) (types.Amount, error) {
	// 1. 编码调用数据
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("pack %s failed: %w", method, err)
	}

	// 2. eth_call
	out, err := s.client.CallContract(ctx, s.contract, data)
	if err != nil {
		return 0, fmt.Errorf("call %s failed: %w", method, err)
	}

	// 3. 解码 uint256
	results, err := erc20ABI.Unpack(method, out)
	if err != nil {
		return 0, fmt.Errorf("unpack %s failed: %w", method, err)
	}
	value, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("invalid %s result type %T", method, results[0])
	}

	// 4. 转为 Amount（USDC 量级远小于 uint64 上限）
	amount, err := types.AmountFromBig(value)
	if err != nil {
		return 0, fmt.Errorf("%s result: %w", method, err)
	}
	return amount, nil
}
