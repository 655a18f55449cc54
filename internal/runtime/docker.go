package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-connections/nat"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// DockerGateway implements Gateway against the Docker Engine API. Every
// operation, local image builds included, goes through the SDK: the one
// daemon endpoint is the only runtime dependency, and no docker CLI
// binary is required on the host.
//
// Insecure-registry handling is daemon configuration and cannot be
// applied per pull through the API; a definition's image_insecure flag
// turns into daemon-configuration guidance when its pull fails.
type DockerGateway struct {
	cli *client.Client
	log *log.Logger
}

// NewDockerGateway wraps an initialized Docker SDK client.
func NewDockerGateway(cli *client.Client, logger *log.Logger) *DockerGateway {
	if logger == nil {
		logger = log.Default()
	}
	return &DockerGateway{cli: cli, log: logger.With("component", "gateway")}
}

// classify wraps a Docker SDK error as permanent or transient. Client-side
// mistakes the daemon rejected (missing image, invalid option, name
// conflict, auth) never succeed on retry; anything else — daemon
// unavailable, timeouts, transport errors — is worth retrying.
func classify(op Op, name string, err error) *OpError {
	switch {
	case errdefs.IsNotFound(err),
		errdefs.IsInvalidParameter(err),
		errdefs.IsConflict(err),
		errdefs.IsUnauthorized(err),
		errdefs.IsForbidden(err),
		errdefs.IsNotImplemented(err):
		return NewPermanent(op, name, err)
	default:
		return NewTransient(op, name, err)
	}
}

// PullOrBuild makes the definition's image available locally. An image
// already present is left alone; otherwise the reference is pulled (with
// registry auth when the definition carries credentials) or built from the
// definition's build path.
func (g *DockerGateway) PullOrBuild(ctx context.Context, def *model.ContainerDefinition) error {
	ref := def.ImageRef()
	if _, _, err := g.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		g.log.Debug("image already present", "image", ref)
		return nil
	}

	if def.HasBuild() {
		return g.build(ctx, def)
	}
	return g.pull(ctx, def)
}

func (g *DockerGateway) pull(ctx context.Context, def *model.ContainerDefinition) error {
	opts := image.PullOptions{}
	if def.ImageUsername != "" || def.ImagePassword != "" {
		auth, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username: def.ImageUsername,
			Password: def.ImagePassword,
		})
		if err != nil {
			return NewPermanent(OpPull, def.Name, err)
		}
		opts.RegistryAuth = auth
	}

	g.log.Debug("pulling image", "image", def.Image, "container", def.Name)
	reader, err := g.cli.ImagePull(ctx, def.Image, opts)
	if err != nil {
		return annotatePull(def, classify(OpPull, def.Name, err))
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained, and
	// the daemon reports manifest and auth failures inside the stream
	// rather than on the call itself.
	if err := drainStream(reader); err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return annotatePull(def, NewPermanent(OpPull, def.Name, err))
		}
		return NewTransient(OpPull, def.Name, err)
	}
	return nil
}

// build streams the build context directory to the daemon's build
// endpoint as a tar archive.
func (g *DockerGateway) build(ctx context.Context, def *model.ContainerDefinition) error {
	buildCtx, err := archive.TarWithOptions(def.ImageBuildPath, &archive.TarOptions{})
	if err != nil {
		return NewPermanent(OpBuild, def.Name,
			fmt.Errorf("failed to tar build context %s: %w", def.ImageBuildPath, err))
	}
	defer buildCtx.Close()

	g.log.Debug("building image", "tag", def.Tag, "path", def.ImageBuildPath)
	resp, err := g.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{def.Tag},
		Squash:     def.ImageBuildSquash,
		PullParent: true,
		Remove:     true,
	})
	if err != nil {
		return classify(OpBuild, def.Name, err)
	}
	defer resp.Body.Close()

	// Dockerfile and step failures arrive in the progress stream, not in
	// the call error. A failed build reproduces on retry.
	if err := drainStream(resp.Body); err != nil {
		return NewPermanent(OpBuild, def.Name, err)
	}
	return nil
}

// drainStream consumes a daemon progress stream, surfacing any error
// message the daemon embedded in it.
func drainStream(r io.Reader) error {
	return jsonmessage.DisplayJSONMessagesStream(r, io.Discard, 0, false, nil)
}

// annotatePull attaches daemon-configuration guidance to a failed pull of
// an image marked image_insecure. TLS downgrade is not negotiable per
// pull through the Engine API, so the flag's effect at pull time is this
// diagnostic. Classification is preserved.
func annotatePull(def *model.ContainerDefinition, opErr *OpError) error {
	if !def.ImageInsecure {
		return opErr
	}
	opErr.Err = fmt.Errorf("%w (image_insecure is set: list the registry under the daemon's insecure-registries)", opErr.Err)
	return opErr
}

// Tag applies an additional reference to the definition's image. The
// existing reference stays in place; containers pick the new reference up
// only when a definition names it.
func (g *DockerGateway) Tag(ctx context.Context, def *model.ContainerDefinition, ref string) error {
	if err := g.cli.ImageTag(ctx, def.ImageRef(), ref); err != nil {
		return classify(OpTag, def.Name, err)
	}
	g.log.Debug("image tagged", "source", def.ImageRef(), "target", ref)
	return nil
}

// Create creates the container for the definition. The definition's typed
// options are translated to the API's Config/HostConfig here; nothing
// downstream ever sees a raw flag string.
func (g *DockerGateway) Create(ctx context.Context, def *model.ContainerDefinition, netTarget Handle) (Handle, error) {
	cfg := &container.Config{
		Image:  def.ImageRef(),
		Cmd:    strslice.StrSlice(def.ImageArgs),
		Env:    def.Environment,
		Labels: buildLabels(def.Name, def.Group),
	}

	hostCfg, err := buildHostConfig(def, netTarget)
	if err != nil {
		return "", NewPermanent(OpCreate, def.Name, err)
	}

	resp, err := g.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, def.Name)
	if err != nil {
		return "", classify(OpCreate, def.Name, err)
	}

	g.log.Debug("container created", "container", def.Name, "id", shortID(resp.ID))
	return Handle(resp.ID), nil
}

// buildHostConfig translates a definition's runtime options into the
// Docker API host configuration.
func buildHostConfig(def *model.ContainerDefinition, netTarget Handle) (*container.HostConfig, error) {
	hostCfg := &container.HostConfig{
		Binds:   def.Mounts,
		CapAdd:  strslice.StrSlice(def.CapAdd),
		CapDrop: strslice.StrSlice(def.CapDrop),
		DNS:     def.DNS,
	}

	if len(def.Ports) > 0 {
		_, bindings, err := nat.ParsePortSpecs(def.Ports)
		if err != nil {
			return nil, fmt.Errorf("invalid port specification: %w", err)
		}
		hostCfg.PortBindings = bindings
	}

	if def.Restart != "" {
		hostCfg.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(def.Restart),
		}
	}

	for _, d := range def.Devices {
		mapping, err := parseDevice(d)
		if err != nil {
			return nil, err
		}
		hostCfg.Devices = append(hostCfg.Devices, mapping)
	}

	if len(def.Tmpfs) > 0 {
		hostCfg.Tmpfs = parseTmpfs(def.Tmpfs)
	}

	// Net and Network are mutually exclusive by validation; a resolved
	// net target always wins because it is the reason this container was
	// ordered after its dependency in the first place.
	switch {
	case netTarget != "":
		hostCfg.NetworkMode = container.NetworkMode("container:" + string(netTarget))
	case def.Network != "":
		hostCfg.NetworkMode = container.NetworkMode(def.Network)
	}

	return hostCfg, nil
}

// parseDevice translates "host[:container[:permissions]]" into a device
// mapping, defaulting the container path to the host path and permissions
// to rwm as the Docker CLI does.
func parseDevice(spec string) (container.DeviceMapping, error) {
	parts := strings.Split(spec, ":")
	mapping := container.DeviceMapping{CgroupPermissions: "rwm"}
	switch len(parts) {
	case 1:
		mapping.PathOnHost = parts[0]
		mapping.PathInContainer = parts[0]
	case 2:
		mapping.PathOnHost = parts[0]
		mapping.PathInContainer = parts[1]
	case 3:
		mapping.PathOnHost = parts[0]
		mapping.PathInContainer = parts[1]
		mapping.CgroupPermissions = parts[2]
	default:
		return mapping, fmt.Errorf("invalid device specification %q", spec)
	}
	if mapping.PathOnHost == "" {
		return mapping, fmt.Errorf("invalid device specification %q", spec)
	}
	return mapping, nil
}

// parseTmpfs translates "path[:options]" entries into the API's tmpfs map.
func parseTmpfs(specs []string) map[string]string {
	out := make(map[string]string, len(specs))
	for _, spec := range specs {
		path, opts, _ := strings.Cut(spec, ":")
		out[path] = opts
	}
	return out
}

// Start starts a created container.
func (g *DockerGateway) Start(ctx context.Context, h Handle) error {
	if err := g.cli.ContainerStart(ctx, string(h), container.StartOptions{}); err != nil {
		return classify(OpStart, shortID(string(h)), err)
	}
	g.log.Debug("container started", "id", shortID(string(h)))
	return nil
}

// Stop stops a running container with the given grace period.
func (g *DockerGateway) Stop(ctx context.Context, h Handle, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := g.cli.ContainerStop(ctx, string(h), container.StopOptions{Timeout: &seconds}); err != nil {
		return classify(OpStop, shortID(string(h)), err)
	}
	g.log.Debug("container stopped", "id", shortID(string(h)))
	return nil
}

// Remove deletes the runtime object.
func (g *DockerGateway) Remove(ctx context.Context, h Handle, force bool) error {
	if err := g.cli.ContainerRemove(ctx, string(h), container.RemoveOptions{Force: force}); err != nil {
		return classify(OpRemove, shortID(string(h)), err)
	}
	g.log.Debug("container removed", "id", shortID(string(h)), "force", force)
	return nil
}

// Inspect reports the container's current runtime state.
func (g *DockerGateway) Inspect(ctx context.Context, h Handle) (InspectResult, error) {
	resp, err := g.cli.ContainerInspect(ctx, string(h))
	if err != nil {
		return InspectResult{}, classify(OpInspect, shortID(string(h)), err)
	}
	res := InspectResult{}
	if resp.State != nil {
		res.Running = resp.State.Running
		res.ExitCode = resp.State.ExitCode
	}
	return res, nil
}

// Lookup finds the flotilla-managed container created from the named
// definition, if one exists. Filtering happens daemon-side on the
// definition-name label, so containers created by other tools never
// match.
func (g *DockerGateway) Lookup(ctx context.Context, name string) (Handle, bool, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		filters.Arg("label", LabelContainer+"="+name),
	)
	containers, err := g.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return "", false, classify(OpLookup, name, err)
	}
	if len(containers) == 0 {
		return "", false, nil
	}
	return Handle(containers[0].ID), true, nil
}

// shortID truncates a container ID to the familiar 12-character form for
// log output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
