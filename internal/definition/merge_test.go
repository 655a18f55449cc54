package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// TestMergeDefaults_ExplicitWins verifies the precedence rule: anything the
// definition sets explicitly survives the merge untouched.
func TestMergeDefaults_ExplicitWins(t *testing.T) {
	def := &model.ContainerDefinition{
		Name:        "app",
		Image:       "registry.local/app:1.2",
		Restart:     "on-failure",
		Environment: []string{"MODE=dev"},
	}
	defaults := &model.ContainerDefinition{
		Image:       "registry.local/base:latest",
		Restart:     "always",
		Environment: []string{"MODE=prod", "REGION=us"},
		DNS:         []string{"10.0.0.53"},
	}

	merged := MergeDefaults(def, defaults)

	assert.Equal(t, "registry.local/app:1.2", merged.Image)
	assert.Equal(t, "on-failure", merged.Restart)
	assert.Equal(t, []string{"MODE=dev"}, merged.Environment,
		"lists are replaced wholesale, never concatenated")
	assert.Equal(t, []string{"10.0.0.53"}, merged.DNS,
		"unset list is taken from defaults")
}

func TestMergeDefaults_FillsUnsetScalars(t *testing.T) {
	def := &model.ContainerDefinition{Name: "app", Image: "app:1"}
	defaults := &model.ContainerDefinition{
		Restart:       "unless-stopped",
		ImageUsername: "ci",
		ImagePassword: "hunter2",
		ImageInsecure: true,
	}

	merged := MergeDefaults(def, defaults)

	assert.Equal(t, "unless-stopped", merged.Restart)
	assert.Equal(t, "ci", merged.ImageUsername)
	assert.True(t, merged.ImageInsecure)
}

// TestMergeDefaults_ImageModePaired verifies that image-mode defaults are
// applied as a unit and never mixed into an explicitly chosen mode, which
// would break the image/build mutual exclusion.
func TestMergeDefaults_ImageModePaired(t *testing.T) {
	defaults := &model.ContainerDefinition{
		ImageBuildPath: "/srv/build/base",
		Tag:            "base:local",
	}

	// Definition with no image mode inherits the build pair.
	merged := MergeDefaults(&model.ContainerDefinition{Name: "a"}, defaults)
	assert.Equal(t, "/srv/build/base", merged.ImageBuildPath)
	assert.Equal(t, "base:local", merged.Tag)

	// Definition with a pulled image keeps it and inherits nothing.
	merged = MergeDefaults(&model.ContainerDefinition{Name: "b", Image: "app:1"}, defaults)
	assert.Empty(t, merged.ImageBuildPath)
	assert.Empty(t, merged.Tag)
	require.NoError(t, merged.Validate())
}

func TestMergeDefaults_NetworkPaired(t *testing.T) {
	defaults := &model.ContainerDefinition{Net: "db"}

	merged := MergeDefaults(&model.ContainerDefinition{Name: "a", Image: "app:1"}, defaults)
	assert.Equal(t, "db", merged.Net)

	// An explicit network blocks the net default: net and network are
	// mutually exclusive and a merge must not introduce a violation.
	merged = MergeDefaults(&model.ContainerDefinition{Name: "b", Image: "app:1", Network: "edge"}, defaults)
	assert.Empty(t, merged.Net)
	require.NoError(t, merged.Validate())
}

func TestMergeDefaults_NilDefaults(t *testing.T) {
	def := &model.ContainerDefinition{Name: "app", Image: "app:1"}
	assert.Same(t, def, MergeDefaults(def, nil))
}

func TestMergeDefaults_DoesNotMutateInput(t *testing.T) {
	def := &model.ContainerDefinition{Name: "app", Image: "app:1"}
	defaults := &model.ContainerDefinition{Restart: "always"}

	merged := MergeDefaults(def, defaults)

	assert.Empty(t, def.Restart, "input definition must not be mutated")
	assert.Equal(t, "always", merged.Restart)
}
