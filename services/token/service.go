package token

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/services"
	"github.com/wavetip/wavetip-go/types"
	"github.com/wavetip/wavetip-go/wallet"
)

// Service ERC-20 代币服务接口
//
// 打赏流程用到的最小面：余额、授权额度读取 + 授权提交。
type Service interface {
	// BalanceOf 查询余额（不需要 Wallet）
	BalanceOf(ctx context.Context, account common.Address) (types.Amount, error)

	// Allowance 查询 owner 授予 spender 的额度（不需要 Wallet）
	Allowance(ctx context.Context, owner, spender common.Address) (types.Amount, error)

	// Decimals 查询代币小数位数
	Decimals(ctx context.Context) (uint8, error)

	// Approve 提交授权交易，返回交易哈希
	// wallet 参数可选：如果提供则使用，否则使用服务实例的默认 Wallet
	Approve(ctx context.Context, spender common.Address, amount types.Amount, wallets ...wallet.Wallet) (common.Hash, error)
}

// erc20ABIJSON 打赏流程用到的 ERC-20 方法子集
const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("token: invalid ABI: " + err.Error())
	}
	return parsed
}

// tokenService ERC-20 服务实现
type tokenService struct {
	client   client.Client
	config   *services.Config
	contract common.Address
	wallet   wallet.Wallet // 可选：默认 Wallet
}

// NewService 创建代币服务（不带 Wallet，只读场景）
func NewService(cli client.Client, config *services.Config) Service {
	return NewServiceWithWallet(cli, config, nil)
}

// NewServiceWithWallet 创建带默认 Wallet 的代币服务
func NewServiceWithWallet(cli client.Client, config *services.Config, w wallet.Wallet) Service {
	if config == nil {
		config = services.DefaultConfig()
	}
	return &tokenService{
		client:   cli,
		config:   config,
		contract: config.TokenAddress,
		wallet:   w,
	}
}

// getWallet 获取 Wallet（优先使用参数，其次使用默认 Wallet）
func (s *tokenService) getWallet(wallets ...wallet.Wallet) wallet.Wallet {
	if len(wallets) > 0 && wallets[0] != nil {
		return wallets[0]
	}
	return s.wallet
}
