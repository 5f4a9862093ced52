// Package dispatch is the per-context face of the background compiler.
//
// A Dispatcher belongs to one execution context and is driven from that
// context's main goroutine. It submits optimization jobs into the shared
// executor, collects finished jobs on its own output queue and installs them
// when the main goroutine asks. Results that went stale while compiling are
// disposed instead of installed.
//
// Lifecycle:
//   - Active: Submit, Prioritize and InstallFinished are allowed
//   - TearingDown: queued jobs were flushed, in-flight jobs may still land
//   - Destroyed: everything was waited for and disposed
//
// Blocking calls (Flush with Block, FinishTearDown) run inside the engine's
// WhileParked when the engine implements Parker.
//
// Misuse is not reported as an error. It panics with *job.ContractError:
//   - a finished job routed to another context
//   - HasJobs or SetFinalize called with a foreign Token
//   - SetFinalize while jobs are pending
//   - Close with finished jobs left on the output queue
package dispatch
