package tipflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavetip/wavetip-go/client"
	"github.com/wavetip/wavetip-go/types"
)

// fakeGateway 可编程的 ChainGateway 假实现
//
// 回执通过 confirm/revert 显式投递，确认等待行为与真实网络一致：
// 没有回执就一直等到窗口超时。
type fakeGateway struct {
	mu        sync.Mutex
	chainID   uint64
	balance   types.Amount
	allowance types.Amount

	approveCalls []types.Amount
	tipCalls     []tipCall

	approveHash common.Hash
	tipHash     common.Hash
	approveErr  error
	tipErr      error

	receipts map[common.Hash]*client.Receipt
}

type tipCall struct {
	streamerTag string
	tipType     string
	amount      types.Amount
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		chainID:     84532,
		approveHash: common.HexToHash("0xaa01"),
		tipHash:     common.HexToHash("0xbb02"),
		receipts:    make(map[common.Hash]*client.Receipt),
	}
}

func (f *fakeGateway) ChainID(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
}

func (f *fakeGateway) BalanceOf(ctx context.Context, holder common.Address) (types.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeGateway) Allowance(ctx context.Context, holder common.Address) (types.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowance, nil
}

func (f *fakeGateway) Approve(ctx context.Context, amount types.Amount) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	f.approveCalls = append(f.approveCalls, amount)
	return f.approveHash, nil
}

func (f *fakeGateway) Tip(ctx context.Context, streamerTag, tipType string, amount types.Amount) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tipErr != nil {
		return common.Hash{}, f.tipErr
	}
	f.tipCalls = append(f.tipCalls, tipCall{streamerTag, tipType, amount})
	return f.tipHash, nil
}

func (f *fakeGateway) WaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration) (*client.Receipt, error) {
	deadline := time.After(timeout)
	for {
		f.mu.Lock()
		r := f.receipts[txHash]
		f.mu.Unlock()
		if r != nil {
			return r, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, context.DeadlineExceeded
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeGateway) ExplorerTxURL(txHash common.Hash) string {
	return "https://sepolia.basescan.org/tx/" + txHash.Hex()
}

// confirm 投递成功回执（可同时更新链上"真实"余额/额度）
func (f *fakeGateway) confirm(txHash common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[txHash] = &client.Receipt{TxHash: txHash, BlockNumber: 1, Status: 1}
}

func (f *fakeGateway) revert(txHash common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[txHash] = &client.Receipt{TxHash: txHash, BlockNumber: 1, Status: 0}
}

func (f *fakeGateway) setBalance(v types.Amount)   { f.mu.Lock(); f.balance = v; f.mu.Unlock() }
func (f *fakeGateway) setAllowance(v types.Amount) { f.mu.Lock(); f.allowance = v; f.mu.Unlock() }

func (f *fakeGateway) approveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.approveCalls)
}

func (f *fakeGateway) tipCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tipCalls)
}

func testOptions() *Options {
	return &Options{
		Confirmations:        1,
		ConfirmationWindow:   150 * time.Millisecond,
		ResetAffordanceAfter: 40 * time.Millisecond,
		AbandonGrace:         20 * time.Millisecond,
		SuccessResetDelay:    100 * time.Millisecond,
		ErrorBanner:          150 * time.Millisecond,
		TipType:              "donation",
	}
}

func newTestOrchestrator(t *testing.T, gw *fakeGateway) *Orchestrator {
	t.Helper()
	guard := NewNetworkGuard(84532, gw, &fakeSwitcher{})
	o := New(gw, guard, testOptions())
	require.NoError(t, o.Connect(context.Background(), common.HexToAddress("0x6e2e08fBBA9ED06168eB235145Fe6b5B10aE6BfE")))
	return o
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return o.Status().Phase == PhaseIdle
	}, 2*time.Second, 2*time.Millisecond, "orchestrator did not return to idle")
}

func TestValidationRejectsBadAmounts(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	o := newTestOrchestrator(t, gw)

	for _, amount := range []string{"0", "-1", "abc", "1.2345678", ""} {
		err := o.RequestTip(context.Background(), "lofigirl", amount)
		require.Error(t, err, "amount %q", amount)
		terr, ok := types.IsTipError(err)
		require.True(t, ok)
		assert.Equal(t, types.ErrKindValidation, terr.Kind, "amount %q", amount)
	}

	assert.Zero(t, gw.approveCount(), "validation failures must not reach the chain")
	assert.Zero(t, gw.tipCount())
}

func TestInsufficientBalanceNoSubmission(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(2_000_000) // 2.00 USDC
	o := newTestOrchestrator(t, gw)

	err := o.RequestTip(context.Background(), "lofigirl", "5")
	require.Error(t, err)
	terr, ok := types.IsTipError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindInsufficientBalance, terr.Kind)
	assert.Contains(t, terr.Message, "2.00", "message carries the known balance")

	assert.Zero(t, gw.approveCount())
	assert.Zero(t, gw.tipCount())
}

func TestWrongNetworkNoSubmission(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	gw.mu.Lock()
	gw.chainID = 1 // mainnet
	gw.mu.Unlock()

	err := o.RequestTip(context.Background(), "lofigirl", "1")
	require.Error(t, err)
	terr, ok := types.IsTipError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindWrongNetwork, terr.Kind)

	assert.Zero(t, gw.approveCount())
	assert.Zero(t, gw.tipCount())

	// 补救动作可用：切换请求到达钱包
	require.NoError(t, o.RequestNetworkSwitch(context.Background()))
}

func TestUnknownAllowanceTriggersApprovalOnly(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(0)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))

	// 第一动作是按批量上限授权，而不是转账
	require.Equal(t, 1, gw.approveCount())
	assert.Equal(t, types.Amount(100_000_000), gw.approveCalls[0], "approve the batch ceiling, not the tip amount")
	assert.Zero(t, gw.tipCount(), "transfer must not follow in the same request")

	st := o.Status()
	assert.Equal(t, PhaseApproving, st.Phase)
	assert.Equal(t, SubphaseChainConfirm, st.Subphase)
	assert.True(t, st.Busy)
}

func TestTwoClickApproveThenTip(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(0)
	o := newTestOrchestrator(t, gw)

	// 第一次点击：只授权
	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))
	require.Equal(t, 1, gw.approveCount())

	// 授权确认；链上额度变为上限
	gw.setAllowance(100_000_000)
	gw.confirm(gw.approveHash)
	waitIdle(t, o)

	st := o.Status()
	assert.NotEmpty(t, st.Notice, "approval success is surfaced")
	assert.Equal(t, "3", st.InputAmount, "amount field survives the approval")

	// 额度缓存被强制重读
	require.Eventually(t, func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.allowance != nil && *o.allowance == 100_000_000
	}, 2*time.Second, 2*time.Millisecond)

	// 第二次点击：直接转账，不再授权
	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))
	require.Equal(t, 1, gw.tipCount())
	assert.Equal(t, 1, gw.approveCount(), "no second approval")

	call := gw.tipCalls[0]
	assert.Equal(t, "lofigirl", call.streamerTag)
	assert.Equal(t, "donation", call.tipType)
	assert.Equal(t, types.Amount(3_000_000), call.amount)

	// 确认前：乐观余额 = 10 - 3 = 7，精确无漂移
	st = o.Status()
	require.True(t, st.BalanceKnown)
	assert.Equal(t, types.Amount(7_000_000), st.DisplayedBalance)

	// 确认；链上真实余额变为 7
	gw.setBalance(7_000_000)
	gw.confirm(gw.tipHash)
	waitIdle(t, o)

	require.Eventually(t, func() bool {
		st := o.Status()
		return st.BalanceKnown && st.DisplayedBalance == 7_000_000 && st.Succeeded
	}, 2*time.Second, 2*time.Millisecond, "fresh read supersedes the optimistic value")

	// 成功展示期过后输入被清空
	require.Eventually(t, func() bool {
		st := o.Status()
		return !st.Succeeded && st.InputAmount == ""
	}, 2*time.Second, 2*time.Millisecond)
}

func TestSufficientAllowanceSkipsApproval(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(5_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))
	assert.Zero(t, gw.approveCount())
	require.Equal(t, 1, gw.tipCount())
}

func TestSingleIntentGuard(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "1"))
	assert.True(t, o.Status().Busy)

	err := o.RequestTip(context.Background(), "lofigirl", "1")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, gw.tipCount(), "second request must not race the first")
}

func TestUserRejectionRevertsOptimisticBalance(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	gw.tipErr = errors.New("user rejected transaction")
	o := newTestOrchestrator(t, gw)

	err := o.RequestTip(context.Background(), "lofigirl", "3")
	require.Error(t, err)
	terr, ok := types.IsTipError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindUserRejected, terr.Kind)

	st := o.Status()
	assert.Equal(t, PhaseIdle, st.Phase)
	require.True(t, st.BalanceKnown)
	assert.Equal(t, types.Amount(10_000_000), st.DisplayedBalance, "optimistic adjustment rolled back")
	require.NotNil(t, st.LastError)

	// 错误横幅自动消失
	require.Eventually(t, func() bool {
		return o.Status().LastError == nil
	}, 2*time.Second, 2*time.Millisecond)
}

func TestRevertedTransactionRollsBack(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))
	gw.revert(gw.tipHash)
	waitIdle(t, o)

	require.Eventually(t, func() bool {
		st := o.Status()
		return st.LastError != nil && st.LastError.Kind == types.ErrKindReverted
	}, 2*time.Second, 2*time.Millisecond)

	st := o.Status()
	require.True(t, st.BalanceKnown)
	assert.Equal(t, types.Amount(10_000_000), st.DisplayedBalance)
}

func TestSilentAbandonWithoutHash(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	gw.tipHash = common.Hash{} // 钱包静默取消：无哈希、无拒绝信号
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "1"))
	waitIdle(t, o)

	st := o.Status()
	assert.Nil(t, st.LastError, "silent abandon shows no error banner")
	assert.False(t, st.Busy)
}

func TestConfirmationWindowDoesNotFailIntent(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "1"))

	// 远超单轮确认窗口后依旧 pending，且重置入口已解锁
	time.Sleep(200 * time.Millisecond)
	st := o.Status()
	assert.Equal(t, PhaseSending, st.Phase, "window elapsing must not fail the intent")
	assert.Nil(t, st.LastError)
	assert.True(t, st.CanReset, "manual reset unlocks past the threshold")

	// 迟到的确认仍然生效
	gw.setBalance(9_000_000)
	gw.confirm(gw.tipHash)
	waitIdle(t, o)
}

func TestResetForgetsLocalState(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))
	require.True(t, o.Status().Busy)

	o.Reset()

	st := o.Status()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.Busy)
	assert.Nil(t, st.LastError)
	require.True(t, st.BalanceKnown)
	assert.Equal(t, types.Amount(10_000_000), st.DisplayedBalance, "adjustment cleared on reset")

	// 重置后迟到的确认不得复活旧意图
	gw.confirm(gw.tipHash)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, PhaseIdle, o.Status().Phase)
}

func TestExplorerURLExposedWhilePending(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "1"))
	st := o.Status()
	assert.Contains(t, st.ExplorerURL, st.TxHash.Hex())
}

func TestConnectRejectedWhileBusy(t *testing.T) {
	gw := newFakeGateway()
	gw.setBalance(10_000_000)
	gw.setAllowance(100_000_000)
	o := newTestOrchestrator(t, gw)

	require.NoError(t, o.RequestTip(context.Background(), "lofigirl", "3"))
	require.True(t, o.Status().Busy)

	err := o.Connect(context.Background(), common.HexToAddress("0x000000000000000000000000000000000000dEaD"))
	assert.ErrorIs(t, err, ErrBusy)

	// 在途意图和乐观余额的基准都不受影响
	st := o.Status()
	assert.Equal(t, PhaseSending, st.Phase)
	require.True(t, st.BalanceKnown, "balance cache must survive a rejected reconnect")
	assert.Equal(t, types.Amount(7_000_000), st.DisplayedBalance)

	// Reset 之后才允许换持有人
	o.Reset()
	require.NoError(t, o.Connect(context.Background(), common.HexToAddress("0x000000000000000000000000000000000000dEaD")))
}

func TestNotConnectedRejected(t *testing.T) {
	gw := newFakeGateway()
	guard := NewNetworkGuard(84532, gw, nil)
	o := New(gw, guard, testOptions())

	err := o.RequestTip(context.Background(), "lofigirl", "1")
	require.Error(t, err)
	terr, ok := types.IsTipError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrKindValidation, terr.Kind)
}
