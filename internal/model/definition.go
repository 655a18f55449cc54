package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// nameRegex validates container and group names: alphanumeric plus hyphens
// and underscores, starting and ending with an alphanumeric character.
// This mirrors what the Docker daemon accepts for container names, so a
// definition that passes validation never fails at the runtime boundary
// purely because of its name.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// restartPolicies is the set of restart policy values the Docker daemon
// understands. An empty policy is allowed and means "no policy set".
var restartPolicies = map[string]bool{
	"":               true,
	"no":             true,
	"always":         true,
	"on-failure":     true,
	"unless-stopped": true,
}

// ContainerDefinition is the validated, in-memory form of a single container
// definition document. Field names and semantics follow the definition file
// key set; yaml tags match the on-disk keys.
//
// Exactly one image mode is active per definition: either Image references a
// pullable image, or ImageBuildPath+Tag describe a local build. Net and
// Network are mutually exclusive; Net names another container whose network
// namespace this container joins, which creates a hard startup ordering
// dependency on that container.
type ContainerDefinition struct {
	// Name is the unique container name. Names are global across all
	// groups, not scoped per group.
	Name string `yaml:"name"`

	// Image is a pullable image reference (e.g. "docker.io/library/redis:7").
	// Empty when the image is built locally from ImageBuildPath.
	Image string `yaml:"image,omitempty"`

	// ImageArgs is the command passed to the container, overriding the
	// image's default CMD.
	ImageArgs []string `yaml:"image_args,omitempty"`

	// ImageBuildPath is a directory containing a Dockerfile. When set, Tag
	// is required and Image must be empty.
	ImageBuildPath string `yaml:"image_build_path,omitempty"`

	// ImageBuildSquash collapses intermediate layers of a local build.
	ImageBuildSquash bool `yaml:"image_build_squash,omitempty"`

	// Tag names the image produced by a local build. Only valid together
	// with ImageBuildPath; pulled images carry their tag in Image itself.
	Tag string `yaml:"tag,omitempty"`

	// ImageInsecure marks the image's registry as one served without TLS
	// verification. The Docker Engine only honors this through its
	// daemon-side insecure-registries configuration, never per pull, so
	// the flag does not change pull behavior; a failed pull of a marked
	// image carries guidance pointing at the daemon configuration.
	ImageInsecure bool `yaml:"image_insecure,omitempty"`

	// ImageUsername and ImagePassword are registry credentials for pulls.
	ImageUsername string `yaml:"image_username,omitempty"`
	ImagePassword string `yaml:"image_password,omitempty"`

	// CapAdd and CapDrop adjust the container's Linux capability set.
	CapAdd  []string `yaml:"cap_add,omitempty"`
	CapDrop []string `yaml:"cap_drop,omitempty"`

	// Devices lists host device mappings in "host[:container[:permissions]]"
	// form.
	Devices []string `yaml:"devices,omitempty"`

	// DNS lists nameserver addresses for the container.
	DNS []string `yaml:"dns,omitempty"`

	// Environment lists environment variables in "KEY=value" form.
	Environment []string `yaml:"environment,omitempty"`

	// Mounts lists bind mounts in "host:container[:mode]" form, where mode
	// is "ro" or "rw" (default "rw").
	Mounts []string `yaml:"mounts,omitempty"`

	// Tmpfs lists tmpfs mount points inside the container, optionally with
	// options ("/run:rw,size=64m").
	Tmpfs []string `yaml:"tmpfs,omitempty"`

	// Ports lists published ports in "host:container" form.
	Ports []string `yaml:"ports,omitempty"`

	// Restart is the Docker restart policy for the container.
	Restart string `yaml:"restart,omitempty"`

	// Net names another container whose network namespace this container
	// joins. Mutually exclusive with Network.
	Net string `yaml:"net,omitempty"`

	// Network names an external Docker network to attach to. Mutually
	// exclusive with Net.
	Network string `yaml:"network,omitempty"`

	// Group names the group this container belongs to. Empty means
	// ungrouped; ungrouped containers still participate in the global
	// dependency graph.
	Group string `yaml:"group,omitempty"`
}

// Validate checks the definition's structural invariants. It returns a
// *ValidationError naming the offending field on the first violation found.
//
// Reference invariants that span definitions (a Net target existing, group
// membership) are not checked here; those belong to the registry and the
// dependency graph, which see the whole set of definitions at once.
func (d *ContainerDefinition) Validate() error {
	if d.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if !nameRegex.MatchString(d.Name) {
		return NewValidationError("name",
			fmt.Sprintf("%q may contain only alphanumerics, hyphens and underscores, and must start and end with an alphanumeric", d.Name))
	}

	// Exactly one image mode: pulled image, or build path + tag.
	switch {
	case d.Image == "" && d.ImageBuildPath == "":
		return NewValidationError("image", "either image or image_build_path must be set")
	case d.Image != "" && d.ImageBuildPath != "":
		return NewValidationError("image_build_path", "mutually exclusive with image")
	case d.ImageBuildPath != "" && d.Tag == "":
		return NewValidationError("tag", "required when image_build_path is set")
	case d.ImageBuildPath == "" && d.Tag != "":
		return NewValidationError("tag", "only valid with image_build_path; put the tag in the image reference instead")
	}

	if d.Net != "" && d.Network != "" {
		return NewValidationError("net", "mutually exclusive with network")
	}
	if d.Net != "" && d.Net == d.Name {
		return NewValidationError("net", "container cannot join its own network namespace")
	}

	if !restartPolicies[d.Restart] {
		return NewValidationError("restart",
			fmt.Sprintf("%q is not a valid restart policy (valid: no, always, on-failure, unless-stopped)", d.Restart))
	}

	for _, m := range d.Mounts {
		if err := validateMount(m); err != nil {
			return err
		}
	}
	for _, p := range d.Ports {
		if err := validatePort(p); err != nil {
			return err
		}
	}
	for _, e := range d.Environment {
		if !strings.Contains(e, "=") {
			return NewValidationError("environment",
				fmt.Sprintf("%q is not in KEY=value form", e))
		}
	}

	return nil
}

// HasBuild reports whether the definition builds its image locally rather
// than pulling it.
func (d *ContainerDefinition) HasBuild() bool {
	return d.ImageBuildPath != ""
}

// ImageRef returns the image reference the container runs: the pull
// reference for pulled images, or the build tag for locally built ones.
func (d *ContainerDefinition) ImageRef() string {
	if d.HasBuild() {
		return d.Tag
	}
	return d.Image
}

// validateMount checks a "host:container[:mode]" bind mount specification.
func validateMount(spec string) error {
	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 2:
	case 3:
		if parts[2] != "ro" && parts[2] != "rw" {
			return NewValidationError("mounts",
				fmt.Sprintf("%q: mode must be ro or rw", spec))
		}
	default:
		return NewValidationError("mounts",
			fmt.Sprintf("%q is not in host:container[:mode] form", spec))
	}
	if parts[0] == "" || parts[1] == "" {
		return NewValidationError("mounts",
			fmt.Sprintf("%q has an empty path component", spec))
	}
	return nil
}

// validatePort checks a "host:container" published port specification.
func validatePort(spec string) error {
	host, cont, ok := strings.Cut(spec, ":")
	if !ok {
		return NewValidationError("ports",
			fmt.Sprintf("%q is not in host:container form", spec))
	}
	for _, p := range []string{host, cont} {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return NewValidationError("ports",
				fmt.Sprintf("%q: port %q out of range (1-65535)", spec, p))
		}
	}
	return nil
}

// HostPorts returns the host-side port numbers this definition publishes.
// The definition must have passed Validate; malformed entries are skipped.
func (d *ContainerDefinition) HostPorts() []int {
	ports := make([]int, 0, len(d.Ports))
	for _, spec := range d.Ports {
		host, _, ok := strings.Cut(spec, ":")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(host); err == nil {
			ports = append(ports, n)
		}
	}
	return ports
}

// GroupDefinition describes a named group of containers managed as a unit.
//
// A group's startup order is never declared — it is derived from the
// dependency graph restricted to its members. Master is an ordering hint
// only: among containers of equal graph rank, the master is scheduled
// first. It never overrides a derived dependency edge.
type GroupDefinition struct {
	// Name is the unique group name.
	Name string `yaml:"-"`

	// Master optionally names the group's primary container.
	Master string `yaml:"master,omitempty"`

	// Members lists the container names belonging to this group, in
	// declaration order.
	Members []string `yaml:"members,omitempty"`

	// Defaults optionally holds group-scoped default values applied to
	// member definitions that leave the corresponding fields unset.
	Defaults *ContainerDefinition `yaml:"defaults,omitempty"`
}

// Validate checks the group's local invariants. Member resolution is the
// registry's job; here we only check the name and that the master, when
// set, is listed as a member.
func (g *GroupDefinition) Validate() error {
	if g.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if !nameRegex.MatchString(g.Name) {
		return NewValidationError("name",
			fmt.Sprintf("%q may contain only alphanumerics, hyphens and underscores, and must start and end with an alphanumeric", g.Name))
	}
	if g.Master != "" && !g.HasMember(g.Master) {
		return NewValidationError("master",
			fmt.Sprintf("%q is not a member of group %q", g.Master, g.Name))
	}
	return nil
}

// HasMember reports whether name is listed as a member of the group.
func (g *GroupDefinition) HasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}
