// Package lib provides a Go SDK to run shell commands concurrently on a fixed
// pool of workers, embedded in the caller's process.
//
// Commands are submitted without blocking and executed by the workers in
// submission order. The caller can look at the queued, running and finished
// tasks at any time and fetch the captured output of the finished ones.
//
// # Quick Start
//
//	pool, err := lib.New(ctx, lib.Config{Workers: 4})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	id, _ := pool.Submit(ctx, "ls -l /tmp")
//	_ = pool.Wait(ctx)
//
//	out, _ := pool.Output(ctx, id)
//	fmt.Printf("exit %d: %s", out.ExitCode, out.Stdout)
//
// Command lines are split on single spaces, there is no shell: quotes, pipes and
// variables are passed verbatim to the program. Use "sh -c ..." style commands
// if a shell is needed (keeping in mind the split).
//
// # Runners
//
//   - [RunnerLocal]: Child processes of the current process (default).
//   - [RunnerDocker]: Processes executed inside an already running container.
//   - [RunnerFake]: Simulated execution for tests (echo, true, false, exit N, sleep D).
//
// # Archive
//
// When [Config].ArchiveDBPath is set, every terminal task is also stored in a
// SQLite database so it can be inspected after the pool is closed (e.g. with the
// cmdpool CLI "list" and "show" commands).
//
// # Observability
//
// Logs are disabled unless [Config].Logger is set (see the lib/log package).
// Every task execution is traced as a "task.Execute" span on [Config].TracerProvider,
// or on the global OpenTelemetry provider when unset.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: The task does not exist or has no output yet.
//   - [ErrTaskFailed]: The task process could not be spawned.
//   - [ErrNotValid]: Invalid input or configuration.
//   - [ErrClosed]: The workers stopped while tasks were still pending (from [Pool.Wait]).
//
// # Thread Safety
//
// A [Pool] is safe for concurrent use from multiple goroutines.
package lib
