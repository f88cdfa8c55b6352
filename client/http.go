package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// httpClient HTTP 客户端实现
type httpClient struct {
	ethAPI
	endpoint string
	client   *http.Client
	logger   Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

// NewHTTPClient 创建 HTTP 客户端
func NewHTTPClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Debug && config.Logger != nil {
			retryConfig.OnRetry = func(attempt int, err error) {
				config.Logger.Warn("Retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	c := &httpClient{
		endpoint: config.Endpoint,
		client: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		logger: config.Logger,
		debug:  config.Debug,
		retry:  retryConfig,
	}
	c.ethAPI.call = c.Call
	return c, nil
}

// Call 调用 JSON-RPC 方法
func (c *httpClient) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	// 1. 构建 JSON-RPC 请求（原子计数器生成唯一 ID）
	if params == nil {
		params = []interface{}{}
	}
	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	// 2. 发送请求（带重试；Body 只能读一次，每次重试重建请求）
	var resp *http.Response
	err = withRetry(ctx, func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}

		if isRetryableHTTPStatus(httpResp.StatusCode) {
			httpResp.Body.Close()
			return &HTTPStatusError{Status: httpResp.StatusCode}
		}

		resp = httpResp
		return nil
	}, c.retry)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	// 3. 读取并解析响应
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("JSON-RPC response", "status", resp.StatusCode, "body", string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	// 4. 节点错误原样透传（code 留给上层分类）
	if jsonResp.Error != nil {
		return nil, &RPCError{
			Code:    jsonResp.Error.Code,
			Message: jsonResp.Error.Message,
			Data:    jsonResp.Error.Data,
		}
	}

	return jsonResp.Result, nil
}

// SubscribeNewHeads 订阅新区块头（HTTP 不支持，需要使用 WebSocket）
func (c *httpClient) SubscribeNewHeads(ctx context.Context) (<-chan uint64, error) {
	return nil, NewNotSupportedError("newHeads subscription over HTTP")
}

// Close 关闭连接（HTTP 客户端无需特殊处理）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// jsonRPCRequest JSON-RPC 请求结构
type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// jsonRPCResponse JSON-RPC 响应结构
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// jsonRPCError JSON-RPC 错误结构
type jsonRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
