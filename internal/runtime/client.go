package runtime

import (
	"context"
	"fmt"
	"net"
	"os"
	goruntime "runtime"
	"time"

	"github.com/docker/docker/client"
)

// pingTimeout bounds the daemon liveness probe. Generous enough for
// Docker Desktop on macOS, which responds noticeably slower than a native
// Linux daemon.
const pingTimeout = 5 * time.Second

// NewDockerClient creates a Docker SDK client with automatic socket
// detection: DOCKER_HOST wins when set, otherwise the platform's default
// socket locations are probed in order.
func NewDockerClient() (*client.Client, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			return nil, fmt.Errorf("docker socket not found: %w", err)
		}
		host = detected
	}

	// API version negotiation keeps the client compatible with whatever
	// daemon version is running, instead of pinning one API version.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client for host %q: %w", host, err)
	}
	return c, nil
}

// detectDockerHost probes the known socket locations for the current
// platform and returns the connection string for the first that exists.
// Existence is checked rather than connectivity: Ping covers liveness.
func detectDockerHost() (string, error) {
	switch goruntime.GOOS {
	case "linux":
		return detectUnixSocket([]string{"/var/run/docker.sock"})

	case "darwin":
		// Docker Desktop symlinks /var/run/docker.sock, newer versions
		// place the socket under the user's home instead.
		paths := []string{"/var/run/docker.sock"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, home+"/.docker/run/docker.sock")
		}
		return detectUnixSocket(paths)

	case "windows":
		// Named pipes are not visible to os.Stat; a brief dial is the
		// only reliable existence check.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, time.Second)
		if err != nil {
			return "", fmt.Errorf("docker named pipe not found at %s: %w", pipePath, err)
		}
		conn.Close()
		return "npipe://" + pipePath, nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", goruntime.GOOS)
	}
}

// detectUnixSocket returns the host URI for the first socket path that
// exists, checking in preference order.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("no docker socket at any of %v — is the daemon running?", paths)
}

// Ping verifies the daemon is reachable within pingTimeout.
func Ping(ctx context.Context, c *client.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.Ping(pingCtx); err != nil {
		return fmt.Errorf("docker daemon is not responding: %w", err)
	}
	return nil
}
