package web

import (
	"encoding/json"
	"net/http"

	"uniqnum/internal/shared/globalstate"
	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	GlobalStatus string              `json:"globalStatus"`
	Listener     *types.ListenerInfo `json:"listener,omitempty"`
	Stats        *types.Stats        `json:"stats"`
}

// ListenerProvider exposes where the number port is bound.
type ListenerProvider interface {
	GetListenerInfo() *types.ListenerInfo
}

type Handler struct {
	stats    types.StatsProvider
	listener ListenerProvider
	status   *globalstate.StatusManager
}

func NewHandler(stats types.StatsProvider, listener ListenerProvider, status *globalstate.StatusManager) *Handler {
	if status == nil {
		status = globalstate.GlobalStatus
	}
	return &Handler{stats: stats, listener: listener, status: status}
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		GlobalStatus: h.status.Get(),
		Stats:        h.stats.Stats(),
	}
	if h.listener != nil {
		resp.Listener = h.listener.GetListenerInfo()
	}
	writeJSON(w, resp)
}

// HandleGetClients 处理 GET /api/clients 请求，返回当前已连接的客户端地址
func (h *Handler) HandleGetClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clients := h.stats.ConnectedClients()
	if clients == nil {
		clients = []string{}
	}
	writeJSON(w, clients)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
