package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/onnwee/trivia-tender/db"
)

// HandleStatus returns a lightweight status summary including queue depths,
// active games, and question source health.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}

	// Queue depth per channel and in total
	queue := h.deps.Scheduler.Queue
	byChannel := map[string]int{}
	channels := queue.Channels()
	sort.Strings(channels)
	for _, ch := range channels {
		if n := queue.Size(ch); n > 0 {
			byChannel[ch] = n
		}
	}
	resp["queue_total"] = queue.TotalSize()
	if len(byChannel) > 0 {
		resp["queue_by_channel"] = byChannel
	}

	// Active games
	active := h.deps.Scheduler.ActiveChannels()
	activeList := make([]string, 0, len(active))
	for ch := range active {
		activeList = append(activeList, ch)
	}
	sort.Strings(activeList)
	resp["active_channels"] = activeList

	// Question source health
	if pool := h.deps.Pool; pool != nil {
		type sourceStatus struct {
			Name        string `json:"name"`
			Instability int    `json:"instability"`
			Tripped     bool   `json:"tripped"`
		}
		tripped := map[string]bool{}
		for _, name := range pool.TrippedSources() {
			tripped[name] = true
		}
		statuses := []sourceStatus{}
		for _, name := range pool.Sources() {
			statuses = append(statuses, sourceStatus{
				Name:        name,
				Instability: pool.Instability(name),
				Tripped:     tripped[name],
			})
		}
		resp["sources"] = statuses
	}

	// Banned question count
	var banned int
	_ = h.deps.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM trivia_bans`).Scan(&banned)
	resp["banned_questions"] = banned

	// Last scheduler pass, if recorded
	if last := db.GetKV(ctx, h.deps.DB, "job_scheduler_last"); last != "" {
		resp["last_scheduler_run"] = last
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleLeaderboard returns the top scorers for a channel.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channelID := strings.TrimSpace(r.URL.Query().Get("channel_id"))
	if channelID == "" {
		http.Error(w, "channel_id required", http.StatusBadRequest)
		return
	}
	limit := parseIntQuery(r, "limit", 10)
	rows, err := h.deps.Leaderboard.Top(r.Context(), channelID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type entry struct {
		Rank     int    `json:"rank"`
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
		Points   int64  `json:"points"`
	}
	out := make([]entry, 0, len(rows))
	for i, row := range rows {
		out = append(out, entry{Rank: i + 1, UserID: row.UserID, UserName: row.UserName, Points: row.Points})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"channel_id": channelID, "entries": out})
}
