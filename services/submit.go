package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/wallet"
)

// SubmitCall 构建、签名并提交一笔合约调用交易
//
// **流程**：
// 1. 查询 pending nonce 和建议 gas 价格
// 2. 估算 gas（加 20% 余量，估算失败即交易会回滚，直接返回）
// 3. 构建交易并用 Wallet 按目标链签名
// 4. eth_sendRawTransaction 提交，返回交易哈希
func SubmitCall(ctx context.Context, cli client.Client, w wallet.Wallet, chainID uint64, to common.Address, data []byte) (common.Hash, error) {
	if w == nil {
		return common.Hash{}, fmt.Errorf("wallet is required")
	}
	from := w.Address()

	// 1. nonce 和 gas 价格
	nonce, err := cli.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("query nonce failed: %w", err)
	}
	gasPrice, err := cli.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("query gas price failed: %w", err)
	}

	// 2. gas 估算
	gasLimit, err := cli.EstimateGas(ctx, from, to, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas failed: %w", err)
	}
	gasLimit += gasLimit / 5

	// 3. 构建并签名
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := w.SignTx(tx, new(big.Int).SetUint64(chainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction failed: %w", err)
	}

	rawTx, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode transaction failed: %w", err)
	}

	// 4. 提交
	txHash, err := cli.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send raw transaction failed: %w", err)
	}
	return txHash, nil
}
