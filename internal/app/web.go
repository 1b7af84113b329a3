// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/headtrack/internal/log"
	"github.com/relabs-tech/headtrack/internal/mapping"
	"github.com/relabs-tech/headtrack/internal/pose"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// NewWebHandler exposes the pipeline over HTTP:
//
//	GET  /api/pose            latest (raw, mapped) pair
//	GET  /api/status          worker and source status
//	POST /api/center          center on the next sample
//	POST /api/zero[?on=bool]  set or toggle the neutral override
//	POST /api/enabled[?on=bool]
//	POST /api/control         {"action": "..."}
//	GET  /api/mapping/{axis}
//	PUT  /api/mapping/{axis}  replace one axis' response curve
//	GET  /ws/pose             websocket stream of frames; accepts commands
func NewWebHandler(p Pipeline, session string, streamInterval time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/pose", func(w http.ResponseWriter, r *http.Request) {
		snap := p.Snapshot()
		if snap.Seq == 0 {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, newFrame(session, snap))
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Status())
	})

	mux.HandleFunc("POST /api/center", func(w http.ResponseWriter, r *http.Request) {
		p.RequestCenter()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/zero", func(w http.ResponseWriter, r *http.Request) {
		on, set, err := boolParam(r, "on")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if set {
			p.RequestZero(on)
		} else {
			on = p.ToggleZero()
		}
		writeJSON(w, http.StatusOK, map[string]bool{"zeroed": on})
	})

	mux.HandleFunc("POST /api/enabled", func(w http.ResponseWriter, r *http.Request) {
		on, set, err := boolParam(r, "on")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if set {
			p.SetEnabled(on)
		} else {
			on = p.ToggleEnabled()
		}
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
	})

	mux.HandleFunc("POST /api/control", func(w http.ResponseWriter, r *http.Request) {
		var cmd Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, "bad command: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := cmd.Apply(p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("GET /api/mapping/{axis}", func(w http.ResponseWriter, r *http.Request) {
		axis, err := pose.ParseAxis(r.PathValue("axis"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		cfg, err := p.Mapping(axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})

	mux.HandleFunc("PUT /api/mapping/{axis}", func(w http.ResponseWriter, r *http.Request) {
		axis, err := pose.ParseAxis(r.PathValue("axis"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		var cfg mapping.AxisConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "bad mapping: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := p.SetMapping(axis, cfg); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, mapping.ErrAxis) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /ws/pose", func(w http.ResponseWriter, r *http.Request) {
		streamPoses(w, r, p, session, streamInterval)
	})

	return mux
}

// streamPoses pushes a Frame every interval while the pipeline has new
// output. Text messages from the client are read as Commands.
func streamPoses(w http.ResponseWriter, r *http.Request, p Pipeline, session string, interval time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd Command
			if err := json.Unmarshal(msg, &cmd); err != nil {
				log.Debug("websocket bad command", "err", err)
				continue
			}
			if err := cmd.Apply(p); err != nil {
				log.Debug("websocket command rejected", "err", err)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
		}

		snap := p.Snapshot()
		if snap.Seq == 0 || snap.Seq == lastSeq {
			continue
		}
		lastSeq = snap.Seq

		conn.SetWriteDeadline(time.Now().Add(2 * interval))
		if err := conn.WriteJSON(newFrame(session, snap)); err != nil {
			log.Debug("websocket write error", "err", err)
			return
		}
	}
}

// boolParam reads an optional boolean query parameter.
func boolParam(r *http.Request, name string) (value, set bool, err error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return false, false, nil
	}
	value, err = strconv.ParseBool(s)
	if err != nil {
		return false, false, errors.New("invalid " + name + " parameter")
	}
	return value, true, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("json encode error", "err", err)
	}
}
