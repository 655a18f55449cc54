package cli

import (
	"errors"
	"fmt"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// Exit codes returned by the CLI. Scripts key on these, so the mapping is
// part of the command contract.
const (
	// ExitOK indicates success.
	ExitOK = 0

	// ExitGeneralError covers failures with no more specific code.
	ExitGeneralError = 1

	// ExitValidation covers bad definitions and bad references: invalid
	// documents, duplicate or unknown names, unresolved net targets.
	ExitValidation = 2

	// ExitCycle indicates a dependency cycle.
	ExitCycle = 3

	// ExitRunFailed indicates one or more containers failed or were
	// skipped during an up/down/restart run.
	ExitRunFailed = 4

	// ExitConcurrent indicates another operation already held a
	// container's transition slot.
	ExitConcurrent = 5
)

// runError reports a run that completed with per-container failures. The
// failures themselves were already printed from the summary.
type runError struct {
	failed int
}

func (e *runError) Error() string {
	return fmt.Sprintf("%d container(s) failed", e.failed)
}

// exitCodeFor maps an error to its exit code via the typed errors in the
// model package.
func exitCodeFor(err error) int {
	var (
		verr  *model.ValidationError
		unres *model.UnresolvedDependencyError
		dupG  *model.DuplicateGroupError
		dupC  *model.DuplicateContainerError
		unkG  *model.UnknownGroupError
		unkC  *model.UnknownContainerError
		cyc   *model.CycleError
		unmet *model.DependencyUnmetError
		conc  *model.ConcurrentOperationError
		run   *runError
	)

	switch {
	case errors.As(err, &verr),
		errors.As(err, &unres),
		errors.As(err, &dupG),
		errors.As(err, &dupC),
		errors.As(err, &unkG),
		errors.As(err, &unkC):
		return ExitValidation
	case errors.As(err, &cyc):
		return ExitCycle
	case errors.As(err, &conc):
		return ExitConcurrent
	case errors.As(err, &unmet), errors.As(err, &run):
		return ExitRunFailed
	default:
		return ExitGeneralError
	}
}
