package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HandleAdminQueueClear drops all pending queue entries for a channel.
func (h *Handlers) HandleAdminQueueClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channel := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("channel")))
	if channel == "" {
		http.Error(w, "channel required", http.StatusBadRequest)
		return
	}
	dropped := h.deps.Scheduler.ClearChannel(channel)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "channel": channel, "dropped": dropped})
}

// HandleAdminQuestionBan bans (POST) or unbans (DELETE) a question by its
// source-scoped id so it is never served again.
func (h *Handlers) HandleAdminQuestionBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TriviaID string `json:"trivia_id"`
		Source   string `json:"source"`
		BannedBy string `json:"banned_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.TriviaID == "" || req.Source == "" {
		http.Error(w, "trivia_id and source required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := h.deps.Bans.Ban(r.Context(), req.TriviaID, req.Source, req.BannedBy); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "trivia_id": req.TriviaID, "source": req.Source})
	case http.MethodDelete:
		removed, err := h.deps.Bans.Unban(r.Context(), req.TriviaID, req.Source)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !removed {
			http.Error(w, "ban not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "trivia_id": req.TriviaID, "source": req.Source})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAdminQuestionBanList returns recent question bans.
func (h *Handlers) HandleAdminQuestionBanList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	records, err := h.deps.Bans.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"bans": records})
}

// HandleAdminSources enables or disables a question source at runtime.
func (h *Handlers) HandleAdminSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Source  string `json:"source"`
		Enabled *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Source == "" || req.Enabled == nil {
		http.Error(w, "source and enabled required", http.StatusBadRequest)
		return
	}
	found := false
	for _, name := range h.deps.Pool.Sources() {
		if name == req.Source {
			found = true
			break
		}
	}
	if !found {
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}
	h.deps.Pool.SetEnabled(req.Source, *req.Enabled)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "source": req.Source, "enabled": *req.Enabled})
}

// HandleAdminSettings sets a per-channel settings override (POST) or drops a
// channel's cached settings (DELETE, forcing a reload on next read).
func (h *Handlers) HandleAdminSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		var req struct {
			Channel string `json:"channel"`
			Name    string `json:"name"`
			Value   string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		req.Channel = strings.ToLower(strings.TrimSpace(req.Channel))
		if req.Channel == "" || req.Name == "" {
			http.Error(w, "channel and name required", http.StatusBadRequest)
			return
		}
		if err := h.deps.Settings.SetOverride(r.Context(), req.Channel, req.Name, strings.TrimSpace(req.Value)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "channel": req.Channel, "name": req.Name})
	case http.MethodDelete:
		channel := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("channel")))
		h.deps.Settings.Invalidate(channel)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "channel": channel})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
