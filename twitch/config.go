package twitch

import (
	"fmt"
	"time"

	"github.com/wavetip/wavetip-go/client"
)

// Config Twitch Helix 客户端配置
type Config struct {
	// ClientID Twitch 应用的 Client-ID
	ClientID string
	// ClientSecret 应用密钥；只在服务端持有，绝不下发给小程序
	ClientSecret string
	// TokenURL OAuth 令牌端点
	TokenURL string
	// HelixURL Helix API 基础地址
	HelixURL string
	// Timeout 单次 HTTP 请求超时
	Timeout time.Duration
	// TokenTTL 应用令牌的缓存时长（Twitch 令牌约 1 小时过期，留出余量）
	TokenTTL time.Duration
	// Logger 日志器（可选）
	Logger client.Logger
}

// DefaultConfig 返回默认配置（凭证需调用方填充）
func DefaultConfig() *Config {
	return &Config{
		TokenURL: "https://id.twitch.tv/oauth2/token",
		HelixURL: "https://api.twitch.tv/helix",
		Timeout:  10 * time.Second,
		TokenTTL: 50 * time.Minute,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("twitch credentials not configured")
	}
	if c.TokenURL == "" || c.HelixURL == "" {
		return fmt.Errorf("twitch endpoints not configured")
	}
	return nil
}
