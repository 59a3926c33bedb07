// Package pianista polls long-running Pianista planning and MiniZinc jobs
// until they finish.
//
// A job submitted to the Pianista API answers 202 Accepted while it is still
// running. A [Poller] requests the job status on an exponential backoff
// schedule, gives up after a fixed number of attempts, tolerates a handful
// of transient 500 responses, and reports progress through callbacks,
// including a once-per-second countdown to the next request.
//
// # Quick Start
//
// Poll a planning job with the plan preset and wait for the result:
//
//	client, _ := api.NewClient("https://pianista.example.com", api.WithAPIKey(key))
//	p, _ := pianista.NewPlanPoller(client)
//
//	_ = p.StartPolling(jobID)
//	st, err := p.Wait(ctx)
//	if err == nil && st.Status == pianista.StatusSucceeded {
//	    plan, _ := api.DecodePlan(st.Result)
//	    fmt.Println(plan.Plan)
//	}
//
// # Configuration
//
// Pollers use the functional options pattern:
//
//	p, err := pianista.NewPoller(fetch,
//	    pianista.WithBackoffPolicy(pianista.PlanPolicy()),
//	    pianista.WithMaxAttempts(40),
//	    pianista.WithOnPending(func(ps pianista.PendingStatus) { ... }),
//	    pianista.WithOnTick(func(secondsLeft int) { ... }),
//	    pianista.WithOnSuccess(func(payload []byte) { ... }),
//	    pianista.WithOnError(func(err error) { ... }),
//	)
//
// [PlanPolicy] and [SolvePolicy] are the presets for the two job kinds.
// Any function with the [FetchFunc] signature can be polled, so the poller
// is not tied to HTTP.
//
// # Sessions
//
// Each call to [Poller.StartPolling] begins a new session and cancels the
// previous one. Callbacks belonging to a superseded or stopped session are
// never delivered, and only one status request is in flight at a time.
// Terminal failures are reported as [*TimeoutError] or [*StatusError].
//
// # Monitor
//
// A [Monitor] tracks many jobs at once, keeps their latest state in memory,
// and serves a dashboard with live updates:
//
//	m, _ := pianista.NewMonitor(client, pianista.WithPort(8080))
//	_, _ = m.SubmitPlan(ctx, api.PlanRequest{Domain: domain, Problem: problem})
//	m.Start(ctx) // blocks until ctx is cancelled
//
// # Architecture
//
//   - api: Pianista REST client (jobs, validation, conversion, catalogs)
//   - config: YAML configuration with environment variable expansion
//   - internal/httpx: HTTP transport with retries and rate limiting
//   - internal/store: In-memory job records with pub/sub for live updates
//   - internal/server: Job gateway REST API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pianista
