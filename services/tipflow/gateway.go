package tipflow

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/services"
	"github.com/wavetip/wavetip-go/services/tipping"
	"github.com/wavetip/wavetip-go/services/token"
	"github.com/wavetip/wavetip-go/types"
	"github.com/wavetip/wavetip-go/wallet"
)

// ChainGateway 编排器消费的链上操作面
//
// spender 固定为打赏合约，由实现方持有，编排器不关心合约地址。
type ChainGateway interface {
	// ChainID 当前链 ID
	ChainID(ctx context.Context) (uint64, error)

	// BalanceOf 读取代币余额
	BalanceOf(ctx context.Context, holder common.Address) (types.Amount, error)

	// Allowance 读取 holder 授予打赏合约的额度
	Allowance(ctx context.Context, holder common.Address) (types.Amount, error)

	// Approve 提交授权交易
	Approve(ctx context.Context, amount types.Amount) (common.Hash, error)

	// Tip 提交打赏交易
	Tip(ctx context.Context, streamerTag, tipType string, amount types.Amount) (common.Hash, error)

	// WaitReceipt 等待确认
	WaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration) (*client.Receipt, error)

	// ExplorerTxURL 交易的浏览器链接
	ExplorerTxURL(txHash common.Hash) string
}

// NetworkSwitcher 钱包侧的网络切换请求（wallet_switchEthereumChain）
//
// fire-and-forget：实现只负责把请求递给钱包，不确认切换结果；
// 调用方事后重新读 ChainID 判断。
type NetworkSwitcher interface {
	RequestSwitch(ctx context.Context, chainID uint64) error
}

// gateway 组合 client + token + tipping 的默认 ChainGateway 实现
type gateway struct {
	cli     client.Client
	config  *services.Config
	token   token.Service
	tipping tipping.Service
}

// NewGateway 创建默认 ChainGateway
func NewGateway(cli client.Client, config *services.Config, w wallet.Wallet) ChainGateway {
	if config == nil {
		config = services.DefaultConfig()
	}
	return &gateway{
		cli:     cli,
		config:  config,
		token:   token.NewServiceWithWallet(cli, config, w),
		tipping: tipping.NewServiceWithWallet(cli, config, w),
	}
}

func (g *gateway) ChainID(ctx context.Context) (uint64, error) {
	return g.cli.ChainID(ctx)
}

func (g *gateway) BalanceOf(ctx context.Context, holder common.Address) (types.Amount, error) {
	return g.token.BalanceOf(ctx, holder)
}

func (g *gateway) Allowance(ctx context.Context, holder common.Address) (types.Amount, error) {
	return g.token.Allowance(ctx, holder, g.config.TipContractAddress)
}

func (g *gateway) Approve(ctx context.Context, amount types.Amount) (common.Hash, error) {
	return g.token.Approve(ctx, g.config.TipContractAddress, amount)
}

func (g *gateway) Tip(ctx context.Context, streamerTag, tipType string, amount types.Amount) (common.Hash, error) {
	return g.tipping.Tip(ctx, &tipping.TipRequest{
		StreamerTag: streamerTag,
		TipType:     tipType,
		Amount:      amount,
	})
}

func (g *gateway) WaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration) (*client.Receipt, error) {
	return g.cli.WaitReceipt(ctx, txHash, confirmations, timeout)
}

func (g *gateway) ExplorerTxURL(txHash common.Hash) string {
	return g.config.ExplorerTxURL(txHash)
}
