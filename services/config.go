package services

import "github.com/ethereum/go-ethereum/common"

// Config 统一的业务服务配置：目标链、合约地址、浏览器链接等运行时参数。
//
// **说明**：
// - 避免在各个 service 内部硬编码合约地址
// - 默认值对应 WaveTip 当前部署的 Base Sepolia 环境
type Config struct {
	// ChainID 目标链 ID（NetworkGuard 据此判断）
	ChainID uint64

	// TokenAddress 代币合约地址（USDC）
	TokenAddress common.Address

	// TipContractAddress WaveTip 打赏合约地址
	TipContractAddress common.Address

	// ExplorerBaseURL 区块浏览器交易链接前缀
	ExplorerBaseURL string
}

// Base Sepolia 部署参数
const (
	// BaseSepoliaChainID Base Sepolia 链 ID
	BaseSepoliaChainID uint64 = 84532

	baseSepoliaUSDC    = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	baseSepoliaWaveTip = "0xD0c8Ca68cc81fF4486d5D725fCE612ddFeb0672D"
	baseSepoliaScan    = "https://sepolia.basescan.org/tx/"
)

// DefaultConfig 返回 Base Sepolia 默认配置
func DefaultConfig() *Config {
	return &Config{
		ChainID:            BaseSepoliaChainID,
		TokenAddress:       common.HexToAddress(baseSepoliaUSDC),
		TipContractAddress: common.HexToAddress(baseSepoliaWaveTip),
		ExplorerBaseURL:    baseSepoliaScan,
	}
}

// ExplorerTxURL 指定交易哈希的浏览器链接（只读便民链接，不做程序消费）
func (c *Config) ExplorerTxURL(txHash common.Hash) string {
	return c.ExplorerBaseURL + txHash.Hex()
}
