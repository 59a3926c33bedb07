// Package api is a client for the Pianista planning and solving REST API.
//
// It covers the planner and solver catalogs, PDDL plan and MiniZinc solve
// submissions with their status endpoints, PDDL validation, and the
// Mermaid and natural language conversion endpoints.
//
// Submissions return a [Submission]; when the server answers 202 the job
// runs asynchronously and its status endpoint ([Client.GetPlan],
// [Client.GetSolve]) has to be polled. Those status calls return the raw
// [JobResponse] so a poller can interpret 202/404/500 itself; see the root
// package for that.
//
// Non-success responses on other endpoints are returned as *[APIError];
// [StatusMessage] renders any error as a human-readable sentence.
package api
