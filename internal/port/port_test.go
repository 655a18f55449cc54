package port

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// alwaysFree is a Checker fake that reports every port as available.
type alwaysFree struct{}

func (alwaysFree) Available(int) bool { return true }

// busyPorts is a Checker fake that reports the listed ports as taken.
type busyPorts map[int]bool

func (b busyPorts) Available(p int) bool { return !b[p] }

func portedDef(name string, ports ...string) *model.ContainerDefinition {
	return &model.ContainerDefinition{
		Name:  name,
		Image: "docker.io/library/busybox:1.36",
		Ports: ports,
	}
}

func TestCheck_DuplicateHostPort(t *testing.T) {
	defs := []*model.ContainerDefinition{
		portedDef("web", "8080:80"),
		portedDef("api", "8080:3000"),
	}

	err := Check(defs, alwaysFree{})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ports", verr.Field)
	assert.Contains(t, verr.Reason, "8080")
}

func TestCheck_PortInUse(t *testing.T) {
	defs := []*model.ContainerDefinition{
		portedDef("web", "8080:80"),
	}

	err := Check(defs, busyPorts{8080: true})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "already in use")
}

func TestCheck_OK(t *testing.T) {
	defs := []*model.ContainerDefinition{
		portedDef("web", "8080:80", "8443:443"),
		portedDef("db"),
	}

	assert.NoError(t, Check(defs, alwaysFree{}))
	assert.NoError(t, Check(defs, nil), "nil checker skips the host probe")
}

// TestScannerAvailable verifies the OS-level probe against a real listener.
func TestScannerAvailable(t *testing.T) {
	// Grab an ephemeral port and hold it open.
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	taken := l.Addr().(*net.TCPAddr).Port

	s := NewScanner()
	assert.False(t, s.Available(taken), fmt.Sprintf("port %d is held open by the test", taken))

	_ = l.Close()
	assert.True(t, s.Available(taken), "port should be free once the listener closes")
}
