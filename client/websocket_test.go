package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
)

// wsNode 假节点：应答 JSON-RPC 请求并可主动推送 newHeads 通知
type wsNode struct {
	t              *testing.T
	subscribeFails bool
	receiptReady   atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

const wsTestTxHash = "0x00000000000000000000000000000000000000000000000000000000000000ab"

func newWSNode(t *testing.T, subscribeFails bool) (*wsNode, string) {
	t.Helper()
	n := &wsNode{t: t, subscribeFails: subscribeFails}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n.mu.Lock()
		n.conn = conn
		n.mu.Unlock()
		n.serve(conn)
	}))
	t.Cleanup(srv.Close)

	return n, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (n *wsNode) serve(conn *websocket.Conn) {
	for {
		var req struct {
			ID     uint64        `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		switch req.Method {
		case "eth_chainId":
			n.reply(req.ID, `"0x14a34"`)
		case "eth_subscribe":
			if n.subscribeFails {
				n.replyError(req.ID, -32601, "method not found")
			} else {
				n.reply(req.ID, `"0xsub1"`)
			}
		case "eth_unsubscribe":
			n.reply(req.ID, `true`)
		case "eth_blockNumber":
			n.reply(req.ID, `"0x6"`)
		case "eth_getTransactionReceipt":
			if n.receiptReady.Load() {
				n.reply(req.ID, fmt.Sprintf(
					`{"transactionHash":"%s","blockNumber":"0x5","gasUsed":"0xc350","status":"0x1"}`,
					wsTestTxHash))
			} else {
				n.reply(req.ID, `null`)
			}
		default:
			n.replyError(req.ID, -32601, "method not found")
		}
	}
}

func (n *wsNode) reply(id uint64, result string) {
	n.write(fmt.Sprintf(`{"jsonrpc":"2.0","result":%s,"id":%d}`, result, id))
}

func (n *wsNode) replyError(id uint64, code int, message string) {
	n.write(fmt.Sprintf(`{"jsonrpc":"2.0","error":{"code":%d,"message":"%s"},"id":%d}`, code, message, id))
}

// pushHead 推送一条 newHeads 通知
func (n *wsNode) pushHead(number string) {
	n.write(fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xsub1","result":{"number":"%s"}}}`,
		number))
}

func (n *wsNode) write(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		_ = n.conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}
}

func newWSTestClient(t *testing.T, endpoint string) Client {
	t.Helper()
	c, err := NewWebSocketClient(&Config{
		Endpoint: endpoint,
		Protocol: ProtocolWebSocket,
		Timeout:  5,
	})
	if err != nil {
		t.Fatalf("NewWebSocketClient() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWebSocketClient_Call(t *testing.T) {
	_, endpoint := newWSNode(t, false)
	c := newWSTestClient(t, endpoint)

	chainID, err := c.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID() failed: %v", err)
	}
	if chainID != 84532 {
		t.Errorf("ChainID() = %d, want 84532", chainID)
	}
}

func TestWebSocketClient_SubscribeNewHeads(t *testing.T) {
	node, endpoint := newWSNode(t, false)
	c := newWSTestClient(t, endpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heads, err := c.SubscribeNewHeads(ctx)
	if err != nil {
		t.Fatalf("SubscribeNewHeads() failed: %v", err)
	}

	node.pushHead("0x6")
	select {
	case h := <-heads:
		if h != 6 {
			t.Errorf("head = %d, want 6", h)
		}
	case <-time.After(time.Second):
		t.Fatal("no head delivered")
	}
}

// 新头推送应立刻触发一次回执检查：回执就绪后等待在远小于
// 轮询周期（2s）的时间内返回，证明是订阅在驱动而不是 ticker。
func TestWebSocketClient_WaitReceiptWakesOnNewHead(t *testing.T) {
	node, endpoint := newWSNode(t, false)
	c := newWSTestClient(t, endpoint)

	type result struct {
		receipt *Receipt
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := c.WaitReceipt(context.Background(), common.HexToHash(wsTestTxHash), 1, 10*time.Second)
		done <- result{r, err}
	}()

	// 首轮检查拿到 null 后，让回执就绪并推送新头
	time.Sleep(100 * time.Millisecond)
	node.receiptReady.Store(true)
	node.pushHead("0x6")

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("WaitReceipt() failed: %v", res.err)
		}
		if res.receipt.BlockNumber != 5 || !res.receipt.Succeeded() {
			t.Errorf("unexpected receipt: %+v", res.receipt)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReceipt did not wake on the head notification")
	}
}

// 订阅失败（节点不支持 eth_subscribe）时退回纯轮询
func TestWebSocketClient_WaitReceiptFallsBackToPolling(t *testing.T) {
	node, endpoint := newWSNode(t, true)
	c := newWSTestClient(t, endpoint)

	node.receiptReady.Store(true)
	receipt, err := c.WaitReceipt(context.Background(), common.HexToHash(wsTestTxHash), 1, 5*time.Second)
	if err != nil {
		t.Fatalf("WaitReceipt() failed: %v", err)
	}
	if receipt.BlockNumber != 5 {
		t.Errorf("BlockNumber = %d, want 5", receipt.BlockNumber)
	}
}
