package definition

import (
	"github.com/mmr-tortoise/flotilla/internal/model"
)

// MergeDefaults applies group-scoped defaults to a definition without
// overwriting anything the definition sets explicitly.
//
// The rule is precedence, not deep merging: a scalar is filled only when
// the definition leaves it unset, and a list is taken from the defaults
// wholesale only when the definition's list is empty — lists are never
// concatenated. Name and Group are identity fields and never defaulted.
//
// Paired fields keep their mutual-exclusion invariants: image-mode
// defaults (image vs image_build_path+tag) apply only when the definition
// declares no image mode at all, and net/network defaults apply only when
// the definition declares neither. The merged result should be
// re-validated by the caller.
func MergeDefaults(def, defaults *model.ContainerDefinition) *model.ContainerDefinition {
	if defaults == nil {
		return def
	}

	merged := *def

	if merged.Image == "" && merged.ImageBuildPath == "" && merged.Tag == "" {
		merged.Image = defaults.Image
		merged.ImageBuildPath = defaults.ImageBuildPath
		merged.Tag = defaults.Tag
		merged.ImageBuildSquash = defaults.ImageBuildSquash
	}
	if merged.Net == "" && merged.Network == "" {
		merged.Net = defaults.Net
		merged.Network = defaults.Network
	}

	if merged.Restart == "" {
		merged.Restart = defaults.Restart
	}
	if merged.ImageUsername == "" {
		merged.ImageUsername = defaults.ImageUsername
	}
	if merged.ImagePassword == "" {
		merged.ImagePassword = defaults.ImagePassword
	}
	if !merged.ImageInsecure {
		merged.ImageInsecure = defaults.ImageInsecure
	}

	if len(merged.ImageArgs) == 0 {
		merged.ImageArgs = cloneList(defaults.ImageArgs)
	}
	if len(merged.CapAdd) == 0 {
		merged.CapAdd = cloneList(defaults.CapAdd)
	}
	if len(merged.CapDrop) == 0 {
		merged.CapDrop = cloneList(defaults.CapDrop)
	}
	if len(merged.Devices) == 0 {
		merged.Devices = cloneList(defaults.Devices)
	}
	if len(merged.DNS) == 0 {
		merged.DNS = cloneList(defaults.DNS)
	}
	if len(merged.Environment) == 0 {
		merged.Environment = cloneList(defaults.Environment)
	}
	if len(merged.Mounts) == 0 {
		merged.Mounts = cloneList(defaults.Mounts)
	}
	if len(merged.Tmpfs) == 0 {
		merged.Tmpfs = cloneList(defaults.Tmpfs)
	}
	if len(merged.Ports) == 0 {
		merged.Ports = cloneList(defaults.Ports)
	}

	return &merged
}

func cloneList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string{}, in...)
}
