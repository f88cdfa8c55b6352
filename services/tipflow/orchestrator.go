// Package tipflow 实现打赏交易编排：
// 金额校验 → 余额/额度检查 → 授权或转账提交 → 确认追踪 → 终态恢复。
//
// **调度模型**：
// 所有状态变更都经过单把互斥锁，编排器内部不做后台轮询；
// 阻塞点只有网络/钱包边界（提交、等哈希、等确认、读余额额度），
// 确认等待在独立 goroutine 中进行，完成后回调回状态机。
// 同一时刻至多一个在途意图，意图内提交严格先于确认等待先于终态处理。
//
// **重置的边界**：Reset 只清除本地状态、重新启用 UI，
// 已提交的交易无法撤回，仍可能在之后上链成交。
package tipflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/services/tipping"
	"github.com/wavetip/wavetip-go/types"
)

// ErrBusy 已有在途意图时拒绝新的打赏请求（UI 边界的并发保护）
var ErrBusy = errors.New("tipflow: a tip is already in flight")

// Options 编排器参数
type Options struct {
	// Confirmations 要求的确认数
	Confirmations uint64
	// ConfirmationWindow 单轮确认等待窗口；到期不判失败，重新武装继续等
	ConfirmationWindow time.Duration
	// ResetAffordanceAfter 等待超过该时长后解锁手动重置入口
	ResetAffordanceAfter time.Duration
	// AbandonGrace 无哈希无拒绝信号时静默放弃前的宽限
	AbandonGrace time.Duration
	// SuccessResetDelay 打赏成功后延迟多久清空输入
	SuccessResetDelay time.Duration
	// ErrorBanner 错误横幅自动消失时长
	ErrorBanner time.Duration
	// TipType 打赏类型标签
	TipType string
	// Resolver 授权判定（零值使用默认批量上限）
	Resolver AllowanceResolver
	// Logger 日志器（可选）
	Logger client.Logger
}

// DefaultOptions 返回默认参数
func DefaultOptions() *Options {
	return &Options{
		Confirmations:        1,
		ConfirmationWindow:   60 * time.Second,
		ResetAffordanceAfter: 30 * time.Second,
		AbandonGrace:         time.Second,
		SuccessResetDelay:    3 * time.Second,
		ErrorBanner:          4 * time.Second,
		TipType:              tipping.DefaultTipType,
	}
}

// Orchestrator 打赏编排状态机
//
// 余额/额度缓存由编排器实例独占持有，随实例创建和销毁，
// 不依赖任何包级可变状态。
type Orchestrator struct {
	gateway ChainGateway
	guard   *NetworkGuard
	opts    Options
	logger  client.Logger

	mu        sync.Mutex
	gen       uint64 // 代际计数：Reset 后过期回调按此丢弃
	holder    common.Address
	connected bool

	balance   *types.Amount // 最近一次链上读数；nil 表示未知
	allowance *types.Amount // nil 表示未知（未读到即按需授权处理）
	ledger    OptimisticLedger

	intent      *PendingIntent
	inputAmount string
	succeeded   bool
	succeededTx common.Hash
	lastError   *types.TipError
	notice      string

	watchCancel  context.CancelFunc
	errTimer     *time.Timer
	successTimer *time.Timer
	abandonTimer *time.Timer
}

// New 创建编排器
func New(gw ChainGateway, guard *NetworkGuard, opts *Options) *Orchestrator {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Orchestrator{
		gateway: gw,
		guard:   guard,
		opts:    *opts,
		logger:  opts.Logger,
	}
}

// Connect 绑定持有人地址并预热缓存
//
// 当前链不是目标链时顺手请求一次切换；切换请求失败只记提示，
// 不阻塞连接（提交前还有 NetworkGuard 兜底）。
// 余额/额度读取失败同样非致命，缓存保持未知。
//
// 在途意图存在时拒绝：重连会清空余额缓存，正在展示的乐观扣减
// 会失去基准。调用方需先 Reset 再换持有人。
func (o *Orchestrator) Connect(ctx context.Context, holder common.Address) error {
	if holder == (common.Address{}) {
		return fmt.Errorf("holder address is empty")
	}

	o.mu.Lock()
	if o.intent != nil {
		o.mu.Unlock()
		return ErrBusy
	}
	o.holder = holder
	o.connected = true
	o.balance = nil
	o.allowance = nil
	o.mu.Unlock()

	if netID, err := o.guard.CurrentNetwork(ctx); err == nil && !o.guard.IsRequired(netID) {
		if serr := o.guard.RequestSwitch(ctx); serr != nil {
			o.mu.Lock()
			o.notice = fmt.Sprintf("could not request network switch: %v", serr)
			o.mu.Unlock()
			o.logWarn("network switch request failed", "error", serr)
		}
	}

	if err := o.RefreshBalance(ctx); err != nil {
		o.logWarn("balance refresh on connect failed", "error", err)
	}
	if err := o.RefreshAllowance(ctx); err != nil {
		o.logWarn("allowance refresh on connect failed", "error", err)
	}
	return nil
}

// RequestTip 发起一次打赏
//
// **流程**：
// 1. 本地前置校验：已连接、金额合法、余额足够（已知时）
// 2. 网络守卫：当前链必须是目标链，否则不提交任何交易
// 3. 授权判定：额度未知或不足 → 提交批量授权后直接返回，
//    转账留待授权确认后用户再次点击（刻意的两步交互）
// 4. 额度足够 → 记录在途意图和乐观扣减，提交打赏交易
// 5. 确认追踪在后台进行，进度经 Status 暴露
func (o *Orchestrator) RequestTip(ctx context.Context, targetLogin, amountStr string) error {
	o.mu.Lock()
	if o.intent != nil {
		o.mu.Unlock()
		return ErrBusy
	}

	// 1. 前置校验
	if !o.connected {
		err := types.NewTipError(types.ErrKindValidation, "connect a wallet first")
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}
	if strings.TrimSpace(targetLogin) == "" {
		err := types.NewTipError(types.ErrKindValidation, "no channel selected")
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}
	amount, perr := types.ParseAmount(amountStr)
	if perr != nil {
		err := types.WrapTipError(types.ErrKindValidation, "enter a valid amount", perr)
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}
	o.inputAmount = amountStr

	// 2. 余额检查（已知余额时本地拦截，不触链）
	if o.balance != nil && *o.balance < amount {
		err := types.NewTipError(types.ErrKindInsufficientBalance,
			fmt.Sprintf("insufficient balance: %s USDC available", o.balance.Format()))
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}

	// 单飞保护从这里生效
	intent := &PendingIntent{
		ID:          uuid.New().String(),
		TargetLogin: strings.TrimSpace(targetLogin),
		Amount:      amount,
		Phase:       PhaseIdle,
		createdAt:   time.Now(),
	}
	o.intent = intent
	o.succeeded = false
	o.notice = ""
	gen := o.gen
	allowance := o.allowance
	o.mu.Unlock()

	// 3. 网络守卫
	netID, err := o.guard.CurrentNetwork(ctx)
	if err != nil {
		return o.failIntent(gen, types.Classify(err))
	}
	if !o.guard.IsRequired(netID) {
		return o.failIntent(gen, types.NewTipError(types.ErrKindWrongNetwork,
			fmt.Sprintf("wrong network: connected to chain %d, expected %d", netID, o.guard.RequiredNetwork())))
	}

	// 4. 授权判定
	if o.opts.Resolver.NeedsApproval(amount, allowance) {
		return o.submitApproval(ctx, gen)
	}
	return o.submitTransfer(ctx, gen, intent.TargetLogin, amount)
}

// submitApproval 提交批量授权；转账不跟随提交
func (o *Orchestrator) submitApproval(ctx context.Context, gen uint64) error {
	if !o.enterPhase(gen, PhaseApproving) {
		return nil
	}
	o.logInfo("submitting approval", "amount", o.opts.Resolver.ApprovalAmount().String())

	hash, err := o.gateway.Approve(ctx, o.opts.Resolver.ApprovalAmount())
	return o.afterSubmit(gen, hash, err)
}

// submitTransfer 记录乐观扣减并提交打赏交易
func (o *Orchestrator) submitTransfer(ctx context.Context, gen uint64, targetLogin string, amount types.Amount) error {
	if !o.enterPhase(gen, PhaseSending) {
		return nil
	}

	o.mu.Lock()
	if gen == o.gen {
		lastKnown := types.Amount(0)
		if o.balance != nil {
			lastKnown = *o.balance
		}
		o.ledger.ApplyPending(lastKnown, amount)
	}
	o.mu.Unlock()

	tipType := o.opts.TipType
	if tipType == "" {
		tipType = tipping.DefaultTipType
	}
	o.logInfo("submitting tip", "streamer", targetLogin, "amount", amount.String())

	hash, err := o.gateway.Tip(ctx, targetLogin, tipType, amount)
	return o.afterSubmit(gen, hash, err)
}

// enterPhase 将在途意图推进到指定主状态（钱包确认子阶段）
func (o *Orchestrator) enterPhase(gen uint64, phase Phase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.intent == nil {
		return false
	}
	o.intent.Phase = phase
	o.intent.Subphase = SubphaseWalletConfirm
	o.intent.phaseStartedAt = time.Now()
	return true
}

// afterSubmit 处理提交结果
//
// - 出错：分类为终态错误（拒绝 / gas 不足 / 其他）
// - 无哈希且无错误：钱包静默取消的形态，宽限期后静默放弃
// - 拿到哈希：进入链上确认子阶段，启动确认追踪
func (o *Orchestrator) afterSubmit(gen uint64, hash common.Hash, err error) error {
	if err != nil {
		return o.failIntent(gen, types.Classify(err))
	}

	if hash == (common.Hash{}) {
		o.mu.Lock()
		if gen == o.gen && o.intent != nil {
			o.abandonTimer = time.AfterFunc(o.opts.AbandonGrace, func() {
				o.abandonSilently(gen)
			})
		}
		o.mu.Unlock()
		return nil
	}

	o.mu.Lock()
	if gen != o.gen || o.intent == nil {
		o.mu.Unlock()
		return nil
	}
	o.intent.TxHash = hash
	o.intent.Subphase = SubphaseChainConfirm
	o.intent.phaseStartedAt = time.Now()

	watchCtx, cancel := context.WithCancel(context.Background())
	o.watchCancel = cancel
	o.mu.Unlock()

	o.logInfo("transaction submitted", "tx", hash.Hex())
	go o.watch(watchCtx, gen, hash)
	return nil
}

// watch 确认追踪
//
// 单轮等待窗口到期不算失败：重新武装继续等（超时只解锁重置入口，
// 不替用户做放弃决定）。ctx 被 Reset 取消时直接退出。
func (o *Orchestrator) watch(ctx context.Context, gen uint64, hash common.Hash) {
	for {
		receipt, err := o.gateway.WaitReceipt(ctx, hash, o.opts.Confirmations, o.opts.ConfirmationWindow)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				o.logWarn("confirmation window elapsed, still waiting", "tx", hash.Hex())
				continue
			}
			o.resolveFailure(gen, types.Classify(err))
			return
		}
		o.resolveReceipt(gen, receipt)
		return
	}
}

// resolveReceipt 处理确认回执
func (o *Orchestrator) resolveReceipt(gen uint64, receipt *client.Receipt) {
	if !receipt.Succeeded() {
		o.resolveFailure(gen, types.NewTipError(types.ErrKindReverted, "transaction reverted on chain"))
		return
	}

	o.mu.Lock()
	if gen != o.gen || o.intent == nil {
		o.mu.Unlock()
		return
	}
	phase := o.intent.Phase
	txHash := o.intent.TxHash
	o.intent = nil
	o.watchCancel = nil

	switch phase {
	case PhaseApproving:
		// 授权确认：清掉额度缓存强制重读；金额输入保留，等用户再次点击
		o.allowance = nil
		o.notice = "approval confirmed — tap tip again to send"
		o.mu.Unlock()

		o.logInfo("approval confirmed", "tx", txHash.Hex())
		go o.refreshAllowanceAsync()

	case PhaseSending:
		// 打赏确认：清乐观扣减，链上重读接管展示；延迟后清空输入
		o.ledger.Clear()
		o.succeeded = true
		o.succeededTx = txHash
		o.successTimer = time.AfterFunc(o.opts.SuccessResetDelay, func() {
			o.mu.Lock()
			if gen == o.gen && o.succeeded {
				o.succeeded = false
				o.inputAmount = ""
			}
			o.mu.Unlock()
		})
		o.mu.Unlock()

		o.logInfo("tip confirmed", "tx", txHash.Hex())
		go o.refreshBalanceAsync()

	default:
		o.mu.Unlock()
	}
}

// resolveFailure 终态失败：回滚乐观扣减、重读真实余额、挂错误横幅
func (o *Orchestrator) resolveFailure(gen uint64, terr *types.TipError) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.intent = nil
	o.watchCancel = nil
	hadPending := o.ledger.HasPending()
	o.ledger.Clear()
	o.failLocked(terr)
	o.mu.Unlock()

	o.logWarn("tip attempt failed", "kind", string(terr.Kind), "error", terr.Error())
	if hadPending {
		go o.refreshBalanceAsync()
	}
}

// failIntent 提交前/提交中失败（在途意图销毁 + 错误横幅）
func (o *Orchestrator) failIntent(gen uint64, terr *types.TipError) error {
	o.resolveFailure(gen, terr)
	return terr
}

// abandonSilently 静默放弃：无错误横幅，直接回到空闲
//
// 覆盖钱包侧静默取消：既没有哈希，也没有显式拒绝信号。
func (o *Orchestrator) abandonSilently(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.intent == nil || o.intent.TxHash != (common.Hash{}) {
		return
	}
	o.intent = nil
	o.ledger.Clear()
	o.logInfo("tip attempt abandoned silently")
}

// failLocked 记录错误并武装横幅自动消失定时器（须持锁调用）
func (o *Orchestrator) failLocked(terr *types.TipError) {
	o.lastError = terr
	if o.errTimer != nil {
		o.errTimer.Stop()
	}
	o.errTimer = time.AfterFunc(o.opts.ErrorBanner, func() {
		o.mu.Lock()
		if o.lastError == terr {
			o.lastError = nil
		}
		o.mu.Unlock()
	})
}

// Reset 手动重置：忘记本地状态并重新启用 UI
//
// 不撤销已提交的交易（链上无法撤销），该交易仍可能在之后成交；
// 调用方应向用户说明这一点。
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen++
	if o.watchCancel != nil {
		o.watchCancel()
		o.watchCancel = nil
	}
	for _, t := range []*time.Timer{o.errTimer, o.successTimer, o.abandonTimer} {
		if t != nil {
			t.Stop()
		}
	}
	o.errTimer, o.successTimer, o.abandonTimer = nil, nil, nil

	o.intent = nil
	o.ledger.Clear()
	o.lastError = nil
	o.succeeded = false
	o.notice = ""
}

// RequestNetworkSwitch 请求切换到目标链（WrongNetwork 错误的补救动作）
func (o *Orchestrator) RequestNetworkSwitch(ctx context.Context) error {
	return o.guard.RequestSwitch(ctx)
}

// RefreshBalance 重读链上余额
func (o *Orchestrator) RefreshBalance(ctx context.Context) error {
	o.mu.Lock()
	holder := o.holder
	connected := o.connected
	gen := o.gen
	o.mu.Unlock()
	if !connected {
		return fmt.Errorf("not connected")
	}

	balance, err := o.gateway.BalanceOf(ctx, holder)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if gen == o.gen && o.connected {
		o.balance = &balance
	}
	o.mu.Unlock()
	return nil
}

// RefreshAllowance 重读授权额度
func (o *Orchestrator) RefreshAllowance(ctx context.Context) error {
	o.mu.Lock()
	holder := o.holder
	connected := o.connected
	gen := o.gen
	o.mu.Unlock()
	if !connected {
		return fmt.Errorf("not connected")
	}

	allowance, err := o.gateway.Allowance(ctx, holder)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if gen == o.gen && o.connected {
		o.allowance = &allowance
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) refreshBalanceAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := o.RefreshBalance(ctx); err != nil {
		o.logWarn("balance refresh failed", "error", err)
	}
}

func (o *Orchestrator) refreshAllowanceAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := o.RefreshAllowance(ctx); err != nil {
		o.logWarn("allowance refresh failed", "error", err)
	}
}

// Status 当前状态快照
//
// 耗时字段按需计算，没有常驻计时器：阶段退出后不会留下泄漏的 interval。
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := State{
		Phase:       PhaseIdle,
		InputAmount: o.inputAmount,
		Succeeded:   o.succeeded,
		SucceededTx: o.succeededTx,
		LastError:   o.lastError,
		Notice:      o.notice,
	}
	if !o.succeeded {
		s.SucceededTx = common.Hash{}
	}

	if o.intent != nil {
		s.Phase = o.intent.Phase
		s.Subphase = o.intent.Subphase
		s.Busy = true
		s.TargetLogin = o.intent.TargetLogin
		s.Amount = o.intent.Amount
		s.TxHash = o.intent.TxHash
		if o.intent.TxHash != (common.Hash{}) {
			s.ExplorerURL = o.gateway.ExplorerTxURL(o.intent.TxHash)
		}
		if !o.intent.phaseStartedAt.IsZero() {
			s.Elapsed = time.Since(o.intent.phaseStartedAt)
			s.CanReset = s.Elapsed > o.opts.ResetAffordanceAfter
		}
	}

	if o.balance != nil {
		s.BalanceKnown = true
		s.DisplayedBalance = o.ledger.DisplayedBalance(*o.balance)
	}
	return s
}

func (o *Orchestrator) logInfo(msg string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) logWarn(msg string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
