package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pianista-dev/pianista"
	"github.com/pianista-dev/pianista/api"
)

const blocksDomain = `(define (domain blocks)
  (:requirements :strips)
  (:predicates (on ?x ?y) (ontable ?x) (clear ?x) (handempty) (holding ?x))
  (:action pick-up :parameters (?x)
    :precondition (and (clear ?x) (ontable ?x) (handempty))
    :effect (and (not (ontable ?x)) (not (clear ?x)) (not (handempty)) (holding ?x))))`

const blocksProblem = `(define (problem stack-ab) (:domain blocks)
  (:objects a b c)
  (:init (on c a) (ontable a) (ontable b) (clear c) (clear b) (handempty))
  (:goal (and (on a b))))`

func main() {
	// start mock API (see mock_server.go)
	go StartMockPianista(":9999")
	time.Sleep(100 * time.Millisecond)

	client, err := api.NewClient("http://localhost:9999")
	if err != nil {
		slog.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	// plan polling starts at 2s so the demo moves along
	monitor, err := pianista.NewMonitor(client,
		pianista.WithPort(8080),
		pianista.WithTitle("Pianista Demo"),
		pianista.WithPlanPollerOptions(pianista.WithBackoffPolicy(pianista.BackoffPolicy{
			Initial:     2 * time.Second,
			Max:         10 * time.Second,
			Multiplier:  1.5,
			MaxAttempts: 20,
		})),
		pianista.WithStatusCallback(func(u pianista.JobUpdate) {
			if u.Status.Terminal() {
				slog.Info("job finished", "job_id", u.JobID, "kind", u.Kind, "status", u.Status)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for range 3 {
		if _, err := monitor.SubmitPlan(ctx, api.PlanRequest{Domain: blocksDomain, Problem: blocksProblem}); err != nil {
			slog.Error("plan submission failed", "error", err)
		}
	}
	if _, err := monitor.SubmitSolve(ctx, api.SolveRequest{Model: "var 1..10: x; var 1..10: y; solve maximize x + y;"}); err != nil {
		slog.Error("solve submission failed", "error", err)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Pianista Job Gateway Demo                           ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Jobs:                                               ║")
	fmt.Println("  ║   • 3 planning jobs (2s backoff, x1.5)                ║")
	fmt.Println("  ║   • 1 MiniZinc job (solve preset)                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := monitor.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}
