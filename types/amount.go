package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenDecimals 代币小数位数（USDC 固定 6 位）
const TokenDecimals = 6

// Amount 代币金额，以最小单位计（1 USDC = 1_000_000）
//
// **说明**：
// - 始终非负（底层为无符号整数）
// - 用户输入的十进制字符串经 ParseAmount 解析，最多 6 位小数
// - 链上 uint256 返回值经 AmountFromBig 截断校验后转入
type Amount uint64

// ParseAmount 解析用户输入的十进制金额字符串
//
// **规则**：
// - 必须是合法十进制数
// - 必须大于 0
// - 小数位不得超过 6 位（不做四舍五入，超出即拒绝）
func ParseAmount(s string) (Amount, error) {
	// 1. 解析十进制字符串
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	// 2. 必须为正
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than 0, got %q", s)
	}

	// 3. 小数位校验：乘以 10^6 后必须是整数
	scaled := d.Shift(TokenDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, TokenDecimals)
	}

	// 4. 范围校验
	units := scaled.BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	return Amount(units.Uint64()), nil
}

// AmountFromBig 将链上 uint256 返回值转换为 Amount
func AmountFromBig(v *big.Int) (Amount, error) {
	if v == nil {
		return 0, fmt.Errorf("nil amount")
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("amount %s out of range", v.String())
	}
	return Amount(v.Uint64()), nil
}

// BigInt 转换为 *big.Int（交易参数用）
func (a Amount) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(a))
}

// String 渲染为十进制字符串，去除末尾多余的零（如 "3"、"0.5"）
func (a Amount) String() string {
	return decimal.New(int64(a), -TokenDecimals).String()
}

// Format 渲染为固定 2 位小数的展示字符串（如 "7.00"）
func (a Amount) Format() string {
	return decimal.New(int64(a), -TokenDecimals).StringFixed(2)
}
