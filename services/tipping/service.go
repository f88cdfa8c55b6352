package tipping

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/services"
	"github.com/wavetip/wavetip-go/types"
	"github.com/wavetip/wavetip-go/wallet"
)

// DefaultTipType 打赏类型标签（合约侧自由字符串，应用固定用 donation）
const DefaultTipType = "donation"

// Service WaveTip 打赏合约服务接口
type Service interface {
	// Tip 提交打赏交易，返回交易哈希
	// wallet 参数可选：如果提供则使用，否则使用服务实例的默认 Wallet
	Tip(ctx context.Context, req *TipRequest, wallets ...wallet.Wallet) (common.Hash, error)

	// TotalTipsByStreamer 查询某主播累计收到的打赏总额
	TotalTipsByStreamer(ctx context.Context, streamerTag string) (types.Amount, error)

	// TotalTipsCount 查询全网打赏笔数
	TotalTipsCount(ctx context.Context) (uint64, error)

	// ContractBalance 查询合约当前持有的 USDC 余额
	ContractBalance(ctx context.Context) (types.Amount, error)

	// ExplorerTxURL 指定交易的浏览器链接
	ExplorerTxURL(txHash common.Hash) string
}

// TipRequest 打赏请求
type TipRequest struct {
	StreamerTag string       // 主播 Twitch login
	TipType     string       // 打赏类型标签（空则用 DefaultTipType）
	Amount      types.Amount // 打赏金额
}

// waveTipABIJSON WaveTip 合约 ABI
const waveTipABIJSON = `[
	{"name":"tip","type":"function","stateMutability":"nonpayable","inputs":[{"name":"streamerTag","type":"string"},{"name":"tipType","type":"string"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"totalTipsByStreamer","type":"function","stateMutability":"view","inputs":[{"name":"streamerTag","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"totalTipsCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"contractUSDCBalance","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var waveTipABI = mustParseABI(waveTipABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("tipping: invalid ABI: " + err.Error())
	}
	return parsed
}

// tippingService WaveTip 服务实现
type tippingService struct {
	client   client.Client
	config   *services.Config
	contract common.Address
	wallet   wallet.Wallet
}

// NewService 创建打赏服务（不带 Wallet，只读场景）
func NewService(cli client.Client, config *services.Config) Service {
	return NewServiceWithWallet(cli, config, nil)
}

// NewServiceWithWallet 创建带默认 Wallet 的打赏服务
func NewServiceWithWallet(cli client.Client, config *services.Config, w wallet.Wallet) Service {
	if config == nil {
		config = services.DefaultConfig()
	}
	return &tippingService{
		client:   cli,
		config:   config,
		contract: config.TipContractAddress,
		wallet:   w,
	}
}

// Tip 提交打赏交易
//
// **前提**：调用方已确保 allowance 覆盖金额；额度不足时合约会回滚，
// 编排器在提交前用 AllowanceResolver 拦截这种情况。
func (s *tippingService) Tip(ctx context.Context, req *TipRequest, wallets ...wallet.Wallet) (common.Hash, error) {
	// 1. 参数验证
	if req == nil || strings.TrimSpace(req.StreamerTag) == "" {
		return common.Hash{}, fmt.Errorf("streamer tag is required")
	}
	if req.Amount == 0 {
		return common.Hash{}, fmt.Errorf("tip amount must be greater than 0")
	}
	tipType := req.TipType
	if tipType == "" {
		tipType = DefaultTipType
	}

	w := s.wallet
	if len(wallets) > 0 && wallets[0] != nil {
		w = wallets[0]
	}
	if w == nil {
		return common.Hash{}, fmt.Errorf("wallet is required")
	}

	// 2. 编码调用数据
	data, err := waveTipABI.Pack("tip", req.StreamerTag, tipType, req.Amount.BigInt())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack tip failed: %w", err)
	}

	// 3. 构建、签名并提交
	return services.SubmitCall(ctx, s.client, w, s.config.ChainID, s.contract, data)
}

// TotalTipsByStreamer 查询某主播累计收到的打赏总额
func (s *tippingService) TotalTipsByStreamer(ctx context.Context, streamerTag string) (types.Amount, error) {
	value, err := s.readUint256(ctx, "totalTipsByStreamer", streamerTag)
	if err != nil {
		return 0, err
	}
	return types.AmountFromBig(value)
}

// TotalTipsCount 查询全网打赏笔数
func (s *tippingService) TotalTipsCount(ctx context.Context) (uint64, error) {
	value, err := s.readUint256(ctx, "totalTipsCount")
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("tips count out of range")
	}
	return value.Uint64(), nil
}

// ContractBalance 查询合约当前持有的 USDC 余额
func (s *tippingService) ContractBalance(ctx context.Context) (types.Amount, error) {
	value, err := s.readUint256(ctx, "contractUSDCBalance")
	if err != nil {
		return 0, err
	}
	return types.AmountFromBig(value)
}

// ExplorerTxURL 指定交易的浏览器链接
func (s *tippingService) ExplorerTxURL(txHash common.Hash) string {
	return s.config.ExplorerTxURL(txHash)
}

// readUint256 调用返回 uint256 的只读方法
func (s *tippingService) readUint256(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	data, err := waveTipABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s failed: %w", method, err)
	}

	out, err := s.client.CallContract(ctx, s.contract, data)
	if err != nil {
		return nil, fmt.Errorf("call %s failed: %w", method, err)
	}

	results, err := waveTipABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s failed: %w", method, err)
	}
	value, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid %s result type %T", method, results[0])
	}
	return value, nil
}
