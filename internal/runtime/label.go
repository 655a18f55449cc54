package runtime

// Label key constants for the Docker labels applied to every container the
// engine creates. Labels let a later run rediscover the runtime objects
// belonging to a definition without any local state file, and let status
// queries filter out containers created by other tools on the same host.
const (
	// LabelPrefix namespaces all flotilla labels.
	LabelPrefix = "flotilla."

	// LabelManagedBy marks a container as managed by flotilla. This is
	// the discovery filter: Lookup only ever matches containers carrying
	// it.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelContainer stores the definition name the container was created
	// from. Always equal to the runtime container name; kept as a label
	// so filtering does not depend on name matching semantics.
	LabelContainer = LabelPrefix + "container"

	// LabelGroup stores the owning group name, empty for ungrouped
	// containers.
	LabelGroup = LabelPrefix + "group"
)

// ManagedByValue is the value of LabelManagedBy on containers flotilla
// creates.
const ManagedByValue = "flotilla"

// buildLabels constructs the label set for a container created from the
// named definition.
func buildLabels(name, group string) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelContainer: name,
		LabelGroup:     group,
	}
}

// IsManaged reports whether a label set marks a flotilla-managed
// container.
func IsManaged(labels map[string]string) bool {
	return labels[LabelManagedBy] == ManagedByValue
}
