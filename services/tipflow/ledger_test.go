package tipflow

import (
	"testing"

	"github.com/wavetip/wavetip-go/types"
)

func TestLedgerDisplayedBalance(t *testing.T) {
	var l OptimisticLedger

	// 无调整时透传已知余额
	if got := l.DisplayedBalance(10_000_000); got != 10_000_000 {
		t.Errorf("DisplayedBalance() = %d, want 10000000", got)
	}

	// 在途扣减精确生效，无舍入漂移
	adjusted := l.ApplyPending(10_000_000, 3_000_000)
	if adjusted != 7_000_000 {
		t.Errorf("ApplyPending() = %d, want 7000000", adjusted)
	}
	if got := l.DisplayedBalance(10_000_000); got != 7_000_000 {
		t.Errorf("DisplayedBalance() = %d, want 7000000", got)
	}
	if !l.HasPending() {
		t.Error("HasPending() = false after ApplyPending")
	}

	// 清除后恢复透传
	l.Clear()
	if l.HasPending() {
		t.Error("HasPending() = true after Clear")
	}
	if got := l.DisplayedBalance(10_000_000); got != 10_000_000 {
		t.Errorf("DisplayedBalance() after Clear = %d, want 10000000", got)
	}
}

func TestLedgerFloorsAtZero(t *testing.T) {
	var l OptimisticLedger
	l.ApplyPending(1_000_000, 2_000_000)
	if got := l.DisplayedBalance(1_000_000); got != 0 {
		t.Errorf("DisplayedBalance() = %d, want 0 (no underflow)", got)
	}
}

func TestLedgerAdjustmentSupersededByFreshRead(t *testing.T) {
	var l OptimisticLedger
	l.ApplyPending(10_000_000, 3_000_000)
	l.Clear()

	// 清除后任何新的链上读数直接透传，乐观值不再参与
	if got := l.DisplayedBalance(7_000_000); got != 7_000_000 {
		t.Errorf("fresh read should win, got %d", got)
	}
	if got := l.DisplayedBalance(12_345_678); got != 12_345_678 {
		t.Errorf("fresh read should win regardless of value, got %d", got)
	}
}

func TestLedgerZero(t *testing.T) {
	var l OptimisticLedger
	if got := l.DisplayedBalance(types.Amount(0)); got != 0 {
		t.Errorf("DisplayedBalance(0) = %d, want 0", got)
	}
}
