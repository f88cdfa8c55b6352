// Package twitch 封装 Helix 频道搜索。
//
// WaveTip 小程序按主播标签打赏，搜索框背后就是这里的
// SearchChannels；应用密钥留在服务端，前端只经由
// cmd/wavetipd 的代理路由访问。
package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MinQueryLength 低于该长度的查询直接返回空结果，不触发 Helix 调用
const MinQueryLength = 2

// SearchPageSize 单次搜索返回的频道数
const SearchPageSize = 8

// Channel 搜索结果中的频道
type Channel struct {
	ID           string `json:"id"`
	Login        string `json:"login"`
	DisplayName  string `json:"displayName"`
	IsLive       bool   `json:"isLive"`
	ThumbnailURL string `json:"thumbnailUrl"`
	GameID       string `json:"gameId"`
	GameName     string `json:"gameName"`
}

// Searcher 频道搜索能力（handler 消费的接口面）
type Searcher interface {
	// SearchChannels 按关键词搜索频道
	SearchChannels(ctx context.Context, query string) ([]Channel, error)
}

// Client Helix 搜索客户端
//
// **说明**：
// 应用令牌走 client-credentials 流程获取，进程内缓存；
// 过期前复用，过期后下一次调用重新获取。缓存只在单进程内有效，
// wavetipd 是单实例部署，够用，不引入外部存储。
type Client struct {
	config *Config
	http   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time // 测试注入
}

// NewClient 创建 Helix 搜索客户端
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		now:    time.Now,
	}, nil
}

// SearchChannels 按关键词搜索频道
//
// **流程**：
// 1. 查询长度不足 → 空结果（与前端的输入节流约定一致）
// 2. 取应用令牌（缓存命中则复用）
// 3. GET /search/channels?query=...&first=8
// 4. 整形为小程序消费的字段名
func (c *Client) SearchChannels(ctx context.Context, query string) ([]Channel, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return []Channel{}, nil
	}

	token, err := c.appToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get twitch token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/search/channels?query=%s&first=%d",
		c.config.HelixURL, url.QueryEscape(query), SearchPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.config.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search channels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("twitch api returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []struct {
			ID               string `json:"id"`
			BroadcasterLogin string `json:"broadcaster_login"`
			DisplayName      string `json:"display_name"`
			IsLive           bool   `json:"is_live"`
			ThumbnailURL     string `json:"thumbnail_url"`
			GameID           string `json:"game_id"`
			GameName         string `json:"game_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	channels := make([]Channel, 0, len(payload.Data))
	for _, ch := range payload.Data {
		channels = append(channels, Channel{
			ID:           ch.ID,
			Login:        ch.BroadcasterLogin,
			DisplayName:  ch.DisplayName,
			IsLive:       ch.IsLive,
			ThumbnailURL: ch.ThumbnailURL,
			GameID:       ch.GameID,
			GameName:     ch.GameName,
		})
	}
	return channels, nil
}

// appToken 获取应用令牌，进程内缓存直至临近过期
func (c *Client) appToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	c.mu.Lock()
	c.token = payload.AccessToken
	c.tokenExpiry = c.now().Add(c.config.TokenTTL)
	c.mu.Unlock()

	c.logDebug("twitch app token refreshed", "ttl", c.config.TokenTTL.String())
	return payload.AccessToken, nil
}

func (c *Client) logDebug(msg string, args ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}
