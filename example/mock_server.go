package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mockJob is a job the mock API pretends to work on.
type mockJob struct {
	kind    string
	readyAt time.Time
}

// StartMockPianista runs a fake Pianista API. Submitted jobs finish after
// 10-40 seconds and roughly one status request in ten fails with a 500.
// Call this in a goroutine before creating the client.
func StartMockPianista(addr string) {
	var (
		jobs = make(map[string]*mockJob)
		mu   sync.Mutex
	)

	writeJSON := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	}

	submit := func(kind string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			// jobs finish in 10-40 seconds
			delay := time.Duration(10+rand.Intn(31)) * time.Second

			mu.Lock()
			jobs[id] = &mockJob{kind: kind, readyAt: time.Now().Add(delay)}
			mu.Unlock()

			slog.Info("job submitted", "kind", kind, "id", id, "ready_in", delay.String())
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
		}
	}

	status := func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		job, ok := jobs[r.URL.Query().Get("id")]
		mu.Unlock()

		switch {
		case !ok:
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
		case rand.Intn(10) == 0:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "worker restarted"})
		case time.Now().Before(job.readyAt):
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
		case job.kind == "plan":
			writeJSON(w, http.StatusOK, map[string]string{
				"plan":       "(unstack c a)\n(put-down c)\n(pick-up a)\n(stack a b)",
				"planner_id": "lama-first",
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"status":   "OPTIMAL_SOLUTION",
				"solution": map[string]int{"x": 3, "y": 7},
			})
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Pianista mock API"})
	})
	mux.HandleFunc("GET /planners", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"id": "lama-first", "name": "LAMA", "description": "satisficing classical planner"},
		})
	})
	mux.HandleFunc("GET /solvers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"id": "gecode", "name": "Gecode"},
		})
	})
	mux.HandleFunc("POST /solve/pddl", submit("plan"))
	mux.HandleFunc("GET /solve/pddl", status)
	mux.HandleFunc("POST /solve/minizinc", submit("solve"))
	mux.HandleFunc("GET /solve/minizinc", status)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
