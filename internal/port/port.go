// Package port implements the published-port preflight used by the
// lifecycle engine before it issues any runtime call.
//
// Two checks run over the definitions selected for a startup run: the same
// host port must not be published by two definitions, and a published host
// port must not already be bound by another process. Both are structural
// errors reported before any container is created.
package port

import (
	"fmt"
	"net"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// Scanner checks whether host ports are free. It asks the OS directly via
// net.Listen, which needs no elevated permissions and cannot go stale the
// way parsing /proc/net would.
//
// Defined as a struct so it can be injected and faked in engine tests.
type Scanner struct{}

// NewScanner creates a Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Available reports whether the TCP port is free on the host. The probe
// binds to all interfaces because Docker publishes on 0.0.0.0 by default,
// so checking a narrower address would produce false positives.
func (s *Scanner) Available(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	defer func() { _ = l.Close() }()
	return true
}

// Checker is the availability probe the preflight uses; satisfied by
// Scanner and by test fakes.
type Checker interface {
	Available(port int) bool
}

// Check validates the published host ports across the definitions of one
// startup run. It fails with a *model.ValidationError naming "ports" when
// two definitions publish the same host port, or when a published port is
// already bound on the host.
func Check(defs []*model.ContainerDefinition, checker Checker) error {
	owner := make(map[int]string)
	for _, d := range defs {
		for _, p := range d.HostPorts() {
			if prev, dup := owner[p]; dup {
				return model.NewValidationError("ports",
					fmt.Sprintf("host port %d is published by both %q and %q", p, prev, d.Name))
			}
			owner[p] = d.Name

			if checker != nil && !checker.Available(p) {
				return model.NewValidationError("ports",
					fmt.Sprintf("host port %d (published by %q) is already in use", p, d.Name))
			}
		}
	}
	return nil
}
