// Standalone mock Pianista API for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/pianista plan -c example/pianista.yaml -d domain.pddl -p problem.pddl
//	go run ./cmd/pianista serve -c example/pianista.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	fmt.Println("Mock Pianista API starting on :9999")
	fmt.Println("Jobs finish after 10-40s; about 1 in 10 status requests returns 500")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		ready = make(map[string]time.Time)
		kinds = make(map[string]string)
		mu    sync.Mutex
	)

	reply := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	submit := func(kind string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			mu.Lock()
			ready[id] = time.Now().Add(time.Duration(10+rand.Intn(31)) * time.Second)
			kinds[id] = kind
			mu.Unlock()
			slog.Info("job submitted", "kind", kind, "id", id)
			reply(w, http.StatusAccepted, map[string]string{"id": id})
		}
	}

	status := func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")

		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		at, ok := ready[id]
		kind := kinds[id]
		mu.Unlock()

		switch {
		case !ok:
			reply(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
		case rand.Intn(10) == 0:
			reply(w, http.StatusInternalServerError, map[string]string{"detail": "worker restarted"})
		case time.Now().Before(at):
			reply(w, http.StatusAccepted, map[string]string{"status": "processing"})
		case kind == "plan":
			reply(w, http.StatusOK, map[string]string{
				"plan":       "(unstack c a)\n(put-down c)\n(pick-up a)\n(stack a b)",
				"planner_id": "lama-first",
			})
		default:
			reply(w, http.StatusOK, map[string]any{
				"status":   "OPTIMAL_SOLUTION",
				"solution": map[string]int{"x": 3, "y": 7},
			})
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"message": "Pianista mock API"})
	})
	mux.HandleFunc("GET /planners", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []map[string]string{
			{"id": "lama-first", "name": "LAMA", "description": "satisficing classical planner"},
		})
	})
	mux.HandleFunc("GET /solvers", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []map[string]string{{"id": "gecode", "name": "Gecode"}})
	})
	mux.HandleFunc("POST /validate/pddl", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"result_status": "success", "message": "PDDL is valid"})
	})
	mux.HandleFunc("POST /solve/pddl", submit("plan"))
	mux.HandleFunc("GET /solve/pddl", status)
	mux.HandleFunc("POST /solve/minizinc", submit("solve"))
	mux.HandleFunc("GET /solve/minizinc", status)

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
