package webd

import (
	"encoding/json"
	"errors"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/params"
	"io"
	"net/http"
	"strconv"
	"time"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
	Fusion    fusion.Status           `json:"fusion"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
		Config:    s.Config,
		Fusion:    s.fusion.Status(),
	}
	s.writeJSON(w, st)
}

func (s *WebDaemon) handleLast(w http.ResponseWriter, r *http.Request) {
	last, ok := s.recent.Last()
	if !ok {
		if st := s.fusion.Status(); st.Last != nil {
			last, ok = *st.Last, true
		}
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, last)
}

// handleRecent returns up to ?n= of the most recent outputs, oldest first.
func (s *WebDaemon) handleRecent(w http.ResponseWriter, r *http.Request) {
	n := s.Config.ReplaySize
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "bad n", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	s.writeJSON(w, s.recent.Tail(n))
}

type rateBody struct {
	Rate int `json:"rate"`
}

func (s *WebDaemon) handleGetRate(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, rateBody{Rate: s.fusion.Rate()})
}

func (s *WebDaemon) handleSetRate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var req rateBody
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Failed to decode", http.StatusUnprocessableEntity)
		return
	}
	if err := s.fusion.SetRate(req.Rate); err != nil {
		if errors.Is(err, fusion.ErrInvalidRate) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("Failed to set rate", "error", err)
		http.Error(w, "Failed to set rate", http.StatusInternalServerError)
		return
	}
	s.logger.Info("Rate changed", "rate", req.Rate)
	s.writeJSON(w, rateBody{Rate: s.fusion.Rate()})
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
