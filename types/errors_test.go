package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type codedErr struct {
	code int
	msg  string
}

func (e *codedErr) Error() string     { return e.msg }
func (e *codedErr) RPCErrorCode() int { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "eip-1193 rejection code",
			err:  &codedErr{code: 4001, msg: "request failed"},
			want: ErrKindUserRejected,
		},
		{
			name: "rejection by message",
			err:  errors.New("MetaMask Tx Signature: User denied transaction signature"),
			want: ErrKindUserRejected,
		},
		{
			name: "insufficient gas",
			err:  errors.New("insufficient funds for gas * price + value"),
			want: ErrKindInsufficientGas,
		},
		{
			name: "reverted",
			err:  errors.New("execution reverted: transfer amount exceeds allowance"),
			want: ErrKindReverted,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("await receipt: %w", context.DeadlineExceeded),
			want: ErrKindTimeout,
		},
		{
			name: "unknown falls through with original message",
			err:  errors.New("something odd happened"),
			want: ErrKindUnclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := Classify(tt.err)
			if te == nil {
				t.Fatal("Classify returned nil")
			}
			if te.Kind != tt.want {
				t.Errorf("Classify() kind = %s, want %s", te.Kind, tt.want)
			}
			if te.TraceID == "" {
				t.Error("Classify() missing trace id")
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if te := Classify(nil); te != nil {
		t.Errorf("Classify(nil) = %v, want nil", te)
	}
}

func TestClassifyPassthrough(t *testing.T) {
	orig := NewTipError(ErrKindInsufficientBalance, "balance too low")
	wrapped := fmt.Errorf("request tip: %w", orig)

	te := Classify(wrapped)
	if te != orig {
		t.Errorf("Classify() should return the original TipError unchanged")
	}
}

func TestClassifyUnclassifiedKeepsMessage(t *testing.T) {
	te := Classify(errors.New("weird node response"))
	if te.Message != "weird node response" {
		t.Errorf("unclassified error should surface the raw message, got %q", te.Message)
	}
}
