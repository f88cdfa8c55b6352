package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrRejected 签名方拒绝签名
//
// 交互式钱包（浏览器扩展、WalletConnect）在用户点击拒绝时返回；
// 编排器据此归类为 UserRejected，不自动重试。
var ErrRejected = errors.New("wallet: signing request rejected")

// Wallet 钱包接口
type Wallet interface {
	// Address 获取钱包地址
	Address() common.Address

	// SignTx 按 EIP-155 签名交易
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// LocalWallet 本地私钥钱包（用于测试、脚本和服务端签名）
type LocalWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	createdAt  time.Time
}

// NewWallet 创建新钱包（随机私钥）
func NewWallet() (*LocalWallet, error) {
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return newLocalWallet(privateKey), nil
}

// NewWalletFromPrivateKey 从十六进制私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (*LocalWallet, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := ethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return newLocalWallet(privateKey), nil
}

func newLocalWallet(key *ecdsa.PrivateKey) *LocalWallet {
	return &LocalWallet{
		privateKey: key,
		address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		createdAt:  time.Now(),
	}
}

// Address 获取钱包地址
func (w *LocalWallet) Address() common.Address {
	return w.address
}

// SignTx 按 EIP-155 签名交易
func (w *LocalWallet) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id")
	}

	signer := ethtypes.LatestSignerForChainID(chainID)
	signed, err := ethtypes.SignTx(tx, signer, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}
