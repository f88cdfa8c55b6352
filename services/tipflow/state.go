package tipflow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wavetip/wavetip-go/types"
)

// Phase 编排器主状态
type Phase string

const (
	// PhaseIdle 空闲，可接受新的打赏请求
	PhaseIdle Phase = "idle"
	// PhaseApproving 授权交易在途
	PhaseApproving Phase = "approving"
	// PhaseSending 打赏交易在途
	PhaseSending Phase = "sending"
)

// Subphase 在途阶段的子状态（展示用，不单独持久）
type Subphase string

const (
	// SubphaseNone 无在途交易
	SubphaseNone Subphase = ""
	// SubphaseWalletConfirm 等待钱包签名（尚无交易哈希）
	SubphaseWalletConfirm Subphase = "wallet_confirm"
	// SubphaseChainConfirm 已有哈希，等待链上确认
	SubphaseChainConfirm Subphase = "chain_confirm"
)

// PendingIntent 当前在途的一次打赏意图
//
// 同一时刻至多一个；到达终态（确认、失败、放弃）即销毁。
// 纯内存对象，进程重启即丢弃，不做恢复（底层交易可能仍会独立上链）。
type PendingIntent struct {
	ID          string // uuid，贯穿日志与错误 trace
	TargetLogin string
	Amount      types.Amount
	Phase       Phase
	Subphase    Subphase
	TxHash      common.Hash // 零值表示尚未拿到哈希

	createdAt      time.Time
	phaseStartedAt time.Time
}

// State 编排器状态快照（只读，给 UI 渲染）
type State struct {
	Phase    Phase
	Subphase Subphase

	// Busy 是否应禁用金额按钮（phase ≠ Idle 或钱包确认在途）
	Busy bool

	// 在途意图信息（Phase ≠ Idle 时有效）
	TargetLogin string
	Amount      types.Amount
	TxHash      common.Hash
	ExplorerURL string

	// Elapsed 当前子阶段已等待时长
	Elapsed time.Duration
	// CanReset 等待超过阈值后解锁的手动重置入口
	CanReset bool

	// InputAmount 金额输入框保留值（授权确认后不清空，打赏成功后延迟清空）
	InputAmount string

	// Succeeded 最近一次打赏已确认（成功横幅展示期内为 true）
	Succeeded bool
	// SucceededTx 成功交易哈希
	SucceededTx common.Hash

	// LastError 最近一次错误（横幅展示期内非 nil）
	LastError *types.TipError
	// Notice 非阻塞提示（如连接时网络切换请求失败）
	Notice string

	// DisplayedBalance 展示余额（含乐观调整）；BalanceKnown 为 false 时无效
	DisplayedBalance types.Amount
	BalanceKnown     bool
}
