package job

import "fmt"

// ContractError reports scheduler-internal corruption: a sequence gap in batch
// install, a thread-affinity violation, a non-empty output queue at
// destruction, and similar. It is raised with panic and never recovered by the
// scheduler.
type ContractError struct {
	Op     string
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation in %s: %s", e.Op, e.Detail)
}

// Violation panics with a *ContractError.
func Violation(op, format string, args ...any) {
	panic(&ContractError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
