package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Client 以太坊节点客户端接口
//
// 封装打赏流程需要的 eth_* 方法；Call 作为底层通道保留，
// 上层业务不建议直接使用。
type Client interface {
	// Call 调用 JSON-RPC 方法（底层通道）
	Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)

	// ChainID 当前链 ID
	ChainID(ctx context.Context) (uint64, error)

	// BlockNumber 最新区块高度
	BlockNumber(ctx context.Context) (uint64, error)

	// CallContract 只读合约调用（eth_call, latest）
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// SendRawTransaction 发送已签名的原始交易，返回交易哈希
	SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error)

	// TransactionReceipt 查询交易回执；交易尚未上链时返回 (nil, nil)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// WaitReceipt 等待交易达到指定确认数
	//
	// 超时返回包装了 context.DeadlineExceeded 的错误；
	// 交易本身可能仍会在之后上链，调用方自行决定是否重新等待。
	WaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration) (*Receipt, error)

	// SuggestGasPrice 建议 gas 价格
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas 估算交易 gas 用量
	EstimateGas(ctx context.Context, from common.Address, to common.Address, data []byte) (uint64, error)

	// PendingNonceAt 账户的 pending nonce
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SubscribeNewHeads 订阅新区块头（仅 WebSocket 支持）
	SubscribeNewHeads(ctx context.Context) (<-chan uint64, error)

	// Close 关闭连接
	Close() error
}

// Receipt 交易回执
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64 // 1 成功，0 回滚
}

// Succeeded 回执是否表示执行成功
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// NewClient 创建新的客户端
func NewClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Protocol {
	case ProtocolHTTP:
		return NewHTTPClient(config)
	case ProtocolWebSocket:
		return NewWebSocketClient(config)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", config.Protocol)
	}
}
