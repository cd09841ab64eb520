// Package sandbox runs validated programs in an isolated execution context.
//
// Every backend implements the Executor interface and is selected by
// configuration (sandbox.backend):
//
//   - ContainerExecutor drives the docker or podman CLI with no network,
//     bounded memory, a fractional CPU quota, a PID limit, a read-only root
//     filesystem and a read-only workspace mount.
//   - RemoteExecutor posts the file set to a Piston-compatible execution
//     service and maps its response. Isolation is the service's concern.
//   - LocalExecutor runs the language command directly on the host. It is
//     for development only and must be enabled explicitly.
//
// A program that exceeds the wall-clock limit is killed and reported as
// OutcomeTimedOut with empty stdout and TimeoutMessage in stderr. A non-zero
// exit status is a property of the user's program and is reported as
// OutcomeCompleted. Execution is attempted exactly once.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.Job{
//	    Language:  lang,
//	    Workspace: ws,
//	    EntryFile: "main.py",
//	})
//	out := sandbox.Normalize(result)
package sandbox
