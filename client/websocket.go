package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

// websocketClient WebSocket 客户端实现
//
// 除 JSON-RPC 请求/响应外支持 eth_subscribe 推送，
// 编排器用 newHeads 作为确认等待的唤醒信号。
type websocketClient struct {
	ethAPI
	endpoint string
	conn     *websocket.Conn
	mu       sync.Mutex // 写锁（gorilla 不允许并发写）
	closed   atomic.Bool
	nextID   atomic.Uint64

	muReq    sync.Mutex
	requests map[uint64]chan *wsResponse

	muSub sync.Mutex
	subs  map[string]chan uint64 // subscription id -> 区块高度通道
}

// wsResponse JSON-RPC 响应或订阅通知
type wsResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *wsSubParams    `json:"params,omitempty"`
}

// wsSubParams eth_subscription 通知参数
type wsSubParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// 将 http(s):// 转换为 ws(s)://
	endpoint := config.Endpoint
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + endpoint[len("http://"):]
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + endpoint[len("https://"):]
	case !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://"):
		endpoint = "ws://" + endpoint
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	c := &websocketClient{
		endpoint: endpoint,
		conn:     conn,
		requests: make(map[uint64]chan *wsResponse),
		subs:     make(map[string]chan uint64),
	}
	c.ethAPI.call = c.Call

	go c.readLoop()

	return c, nil
}

// readLoop 消息读取循环：分发响应和订阅通知
func (c *websocketClient) readLoop() {
	defer c.failPending(fmt.Errorf("websocket connection closed"))

	for {
		if c.closed.Load() {
			return
		}

		var resp wsResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.failPending(fmt.Errorf("websocket read error: %w", err))
			return
		}

		// 订阅通知
		if resp.Method == "eth_subscription" && resp.Params != nil {
			c.dispatchHead(resp.Params)
			continue
		}

		// 请求响应
		if resp.ID == nil {
			continue
		}
		c.muReq.Lock()
		ch, exists := c.requests[*resp.ID]
		if exists {
			delete(c.requests, *resp.ID)
		}
		c.muReq.Unlock()

		if exists && ch != nil {
			select {
			case ch <- &resp:
			default:
			}
		}
	}
}

// dispatchHead 将 newHeads 通知转为区块高度并分发
func (c *websocketClient) dispatchHead(params *wsSubParams) {
	var head struct {
		Number hexutil.Uint64 `json:"number"`
	}
	if err := json.Unmarshal(params.Result, &head); err != nil {
		return
	}

	c.muSub.Lock()
	ch, ok := c.subs[params.Subscription]
	c.muSub.Unlock()
	if ok {
		select {
		case ch <- uint64(head.Number):
		default:
			// 订阅方落后就丢弃，高度只增不减，错过的头没有价值
		}
	}
}

// failPending 连接失效时让所有挂起的请求返回错误
func (c *websocketClient) failPending(err error) {
	c.closed.Store(true)

	c.muReq.Lock()
	for id, ch := range c.requests {
		select {
		case ch <- &wsResponse{Error: &jsonRPCError{Code: -1, Message: err.Error()}}:
		default:
		}
		delete(c.requests, id)
	}
	c.muReq.Unlock()

	c.muSub.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.muSub.Unlock()
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("websocket client is closed")
	}
	if params == nil {
		params = []interface{}{}
	}

	reqID := c.nextID.Add(1)
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      reqID,
	}

	respCh := make(chan *wsResponse, 1)
	c.muReq.Lock()
	c.requests[reqID] = respCh
	c.muReq.Unlock()

	c.mu.Lock()
	err := c.conn.WriteJSON(req)
	c.mu.Unlock()
	if err != nil {
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-respCh:
		if resp == nil {
			return nil, fmt.Errorf("response channel closed")
		}
		if resp.Error != nil {
			return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
		}
		return resp.Result, nil

	case <-ctx.Done():
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
		return nil, ctx.Err()

	case <-time.After(30 * time.Second):
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
		return nil, fmt.Errorf("request timeout")
	}
}

// SubscribeNewHeads 订阅新区块头，返回区块高度通道
//
// ctx 取消时自动退订并关闭通道。
func (c *websocketClient) SubscribeNewHeads(ctx context.Context) (<-chan uint64, error) {
	raw, err := c.Call(ctx, "eth_subscribe", "newHeads")
	if err != nil {
		return nil, fmt.Errorf("subscribe newHeads: %w", err)
	}

	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil || subID == "" {
		return nil, NewInvalidResponseError("missing subscription id")
	}

	ch := make(chan uint64, 16)
	c.muSub.Lock()
	c.subs[subID] = ch
	c.muSub.Unlock()

	go func() {
		<-ctx.Done()
		c.muSub.Lock()
		if existing, ok := c.subs[subID]; ok {
			delete(c.subs, subID)
			close(existing)
		}
		c.muSub.Unlock()

		if !c.closed.Load() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = c.Call(unsubCtx, "eth_unsubscribe", subID)
		}
	}()

	return ch, nil
}

// WaitReceipt 等待交易达到指定确认数
//
// 订阅 newHeads 作为唤醒信号：新头一到立刻查回执，不等轮询周期。
// 订阅失败（节点不支持、连接受限）退回纯轮询，行为与 HTTP 传输一致。
func (c *websocketClient) WaitReceipt(ctx context.Context, txHash common.Hash, confirmations uint64, timeout time.Duration) (*Receipt, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	heads, err := c.SubscribeNewHeads(subCtx)
	if err != nil {
		return c.ethAPI.WaitReceipt(ctx, txHash, confirmations, timeout)
	}
	return c.waitReceipt(ctx, txHash, confirmations, timeout, heads)
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.failPending(fmt.Errorf("client closed"))
		return c.conn.Close()
	}
	return nil
}
