package twitch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wavetip/wavetip-go/client"
)

// searchResponse 搜索路由的响应体
type searchResponse struct {
	Channels []Channel `json:"channels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler 频道搜索的 HTTP 处理器
type Handler struct {
	searcher Searcher
	logger   client.Logger
}

// NewHandler 创建搜索处理器
func NewHandler(searcher Searcher, logger client.Logger) *Handler {
	return &Handler{searcher: searcher, logger: logger}
}

// Routes 注册搜索路由
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/twitch/search", h.Search)
}

// Search GET /api/twitch/search?q=<query>
//
// 查询过短按空结果处理而非报错，前端可以在每次按键后直接调用。
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	channels, err := h.searcher.SearchChannels(r.Context(), query)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		if h.logger != nil {
			h.logger.Error("channel search failed", "query", query, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to search channels"})
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Channels: channels})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
