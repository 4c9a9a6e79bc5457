package feedback

// ExitCode is the process exit status of a failed command.
type ExitCode int

const (
	// Success is the exit code of a command that completed.
	Success ExitCode = 0
	// ErrGeneric covers every failure without a more specific code.
	ErrGeneric ExitCode = 1
	// ErrBadArgument is returned on invalid flags or arguments.
	ErrBadArgument ExitCode = 2
	// ErrDaemonUnreachable is returned when the daemon socket cannot be reached.
	ErrDaemonUnreachable ExitCode = 3
	// ErrRequestRejected is returned when the daemon answered with a failure.
	ErrRequestRejected ExitCode = 4
)
