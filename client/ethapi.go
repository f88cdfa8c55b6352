package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// callFunc 底层 JSON-RPC 调用
type callFunc func(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)

// ethAPI eth_* 方法的类型化封装，HTTP / WebSocket 传输共用
type ethAPI struct {
	call callFunc
}

// receiptPollInterval 回执轮询间隔
//
// 公共 HTTP 端点没有回执推送，只能轮询 eth_getTransactionReceipt；
// Base 出块约 2s，再快也拿不到新结果。
const receiptPollInterval = 2 * time.Second

// ChainID 当前链 ID
func (e *ethAPI) ChainID(ctx context.Context) (uint64, error) {
	return e.callUint64(ctx, "eth_chainId")
}

// BlockNumber 最新区块高度
func (e *ethAPI) BlockNumber(ctx context.Context) (uint64, error) {
	return e.callUint64(ctx, "eth_blockNumber")
}

// CallContract 只读合约调用
func (e *ethAPI) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	raw, err := e.call(ctx, "eth_call", msg, "latest")
	if err != nil {
		return nil, err
	}

	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("eth_call result: %v", err))
	}
	return out, nil
}

// SendRawTransaction 发送已签名的原始交易
func (e *ethAPI) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	raw, err := e.call(ctx, "eth_sendRawTransaction", hexutil.Encode(signedTx))
	if err != nil {
		return common.Hash{}, err
	}

	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return common.Hash{}, NewInvalidResponseError(fmt.Sprintf("tx hash: %v", err))
	}
	return hash, nil
}

// rpcReceipt eth_getTransactionReceipt 响应
type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}

// TransactionReceipt 查询交易回执；交易尚未上链时返回 (nil, nil)
func (e *ethAPI) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	raw, err := e.call(ctx, "eth_getTransactionReceipt", txHash.Hex())
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var r rpcReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("receipt: %v", err))
	}
	return &Receipt{
		TxHash:      r.TransactionHash,
		BlockNumber: uint64(r.BlockNumber),
		GasUsed:     uint64(r.GasUsed),
		Status:      uint64(r.Status),
	}, nil
}

// WaitReceipt 等待交易达到指定确认数
//
// **流程**：
// 1. 轮询回执直到交易上链
// 2. 比较最新高度与回执高度，满足确认数后返回
// 3. 超时返回包装了 context.DeadlineExceeded 的错误，交易状态不受影响
func (e *ethAPI) WaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration) (*Receipt, error) {
	return e.waitReceipt(ctx, txHash, confirmations, timeout, nil)
}

// waitReceipt WaitReceipt 的共用等待循环
//
// wake 为可选的唤醒通道（WebSocket 的 newHeads 推送）：有新头立刻查一次，
// 不必等下一个轮询周期。wake 为 nil 或被关闭时退化为纯轮询。
func (e *ethAPI) waitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration, wake <-chan uint64) (*Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			head, headErr := e.BlockNumber(waitCtx)
			if headErr == nil && head+1 >= receipt.BlockNumber+confirmations {
				return receipt, nil
			}
		}
		// 查询出错时继续轮询，由超时兜底

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("wait receipt %s: %w", txHash.Hex(), waitCtx.Err())
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				// 订阅断了就回到纯轮询
				wake = nil
			}
		}
	}
}

// SuggestGasPrice 建议 gas 价格
func (e *ethAPI) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	raw, err := e.call(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}

	var price hexutil.Big
	if err := json.Unmarshal(raw, &price); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("gas price: %v", err))
	}
	return price.ToInt(), nil
}

// EstimateGas 估算交易 gas 用量
func (e *ethAPI) EstimateGas(ctx context.Context, from common.Address, to common.Address, data []byte) (uint64, error) {
	msg := map[string]interface{}{
		"from": from.Hex(),
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}
	return e.callUint64(ctx, "eth_estimateGas", msg)
}

// PendingNonceAt 账户的 pending nonce
func (e *ethAPI) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return e.callUint64(ctx, "eth_getTransactionCount", account.Hex(), "pending")
}

// callUint64 调用返回十六进制数值的方法
func (e *ethAPI) callUint64(ctx context.Context, method string, params ...interface{}) (uint64, error) {
	raw, err := e.call(ctx, method, params...)
	if err != nil {
		return 0, err
	}

	var v hexutil.Uint64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, NewInvalidResponseError(fmt.Sprintf("%s result: %v", method, err))
	}
	return uint64(v), nil
}
