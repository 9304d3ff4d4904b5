// Package exitcode lists the process exit statuses of mnemoscan.
package exitcode

// Exit statuses.
const (
	// OK means the input was scanned to the end.
	OK = 0
	// Failure covers I/O and other unrecoverable errors.
	Failure = 1
	// Usage means invalid flags or configuration.
	Usage = 2
	// InputMismatch means the checkpoint belongs to a different input.
	InputMismatch = 3
	// Interrupted means the scan stopped on a signal after saving its checkpoint.
	Interrupted = 130
	// Aborted means a second signal forced an immediate exit.
	Aborted = 131
)
