// Package shutdown provides graceful shutdown for long-running mtlsctl
// commands.
//
// This package handles process termination:
//
//   - Signal handling (SIGINT, SIGTERM) or context cancellation
//   - Timeout-bounded cleanup hooks, run in reverse registration order
//   - Shutdown coordination through Done
//
// Usage:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown("admin server", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
