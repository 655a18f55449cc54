package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validDefinition returns a minimal definition that passes Validate.
// Tests mutate the returned value to probe individual invariants.
func validDefinition() *ContainerDefinition {
	return &ContainerDefinition{
		Name:  "web",
		Image: "docker.io/library/nginx:1.27",
		Group: "frontend",
	}
}

func TestContainerDefinitionValidate_OK(t *testing.T) {
	def := validDefinition()
	def.Environment = []string{"MODE=production"}
	def.Mounts = []string{"/srv/www:/usr/share/nginx/html:ro"}
	def.Ports = []string{"8080:80"}
	def.Restart = "always"

	require.NoError(t, def.Validate())
}

// TestContainerDefinitionValidate_ImageModes verifies the "exactly one of
// pulled image or build-path+tag" invariant, including the error naming
// the offending field.
func TestContainerDefinitionValidate_ImageModes(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*ContainerDefinition)
		wantField string
	}{
		{
			name:      "neither image nor build path",
			mutate:    func(d *ContainerDefinition) { d.Image = "" },
			wantField: "image",
		},
		{
			name: "both image and build path",
			mutate: func(d *ContainerDefinition) {
				d.ImageBuildPath = "/srv/build/web"
				d.Tag = "web:local"
			},
			wantField: "image_build_path",
		},
		{
			name: "build path without tag",
			mutate: func(d *ContainerDefinition) {
				d.Image = ""
				d.ImageBuildPath = "/srv/build/web"
			},
			wantField: "tag",
		},
		{
			name:      "tag without build path",
			mutate:    func(d *ContainerDefinition) { d.Tag = "web:local" },
			wantField: "tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)

			err := def.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "error should be a ValidationError")
			assert.Equal(t, tt.wantField, verr.Field, "error should name the offending field")
		})
	}
}

func TestContainerDefinitionValidate_BuildMode(t *testing.T) {
	def := &ContainerDefinition{
		Name:           "builder",
		ImageBuildPath: "/srv/build/app",
		Tag:            "app:local",
	}
	require.NoError(t, def.Validate())
	assert.True(t, def.HasBuild())
	assert.Equal(t, "app:local", def.ImageRef(), "built definitions run their tag")
}

// TestContainerDefinitionValidate_NetInvariants covers the net/network
// mutual exclusion and the self-reference prohibition.
func TestContainerDefinitionValidate_NetInvariants(t *testing.T) {
	def := validDefinition()
	def.Net = def.Name

	err := def.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "net", verr.Field, "self-referencing net should be rejected")

	def = validDefinition()
	def.Net = "db"
	def.Network = "backend-net"

	err = def.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "net", verr.Field, "net and network are mutually exclusive")
}

func TestContainerDefinitionValidate_Name(t *testing.T) {
	for _, bad := range []string{"", "-leading", "trailing-", "has space", "has/slash"} {
		def := validDefinition()
		def.Name = bad
		assert.Error(t, def.Validate(), "name %q should be rejected", bad)
	}

	for _, good := range []string{"a", "web-1", "db_primary", "Cache2"} {
		def := validDefinition()
		def.Name = good
		assert.NoError(t, def.Validate(), "name %q should be accepted", good)
	}
}

func TestContainerDefinitionValidate_Mounts(t *testing.T) {
	tests := []struct {
		spec string
		ok   bool
	}{
		{"/data:/var/lib/data", true},
		{"/data:/var/lib/data:ro", true},
		{"/data:/var/lib/data:rw", true},
		{"/data:/var/lib/data:rwx", false},
		{"/data", false},
		{":/var/lib/data", false},
	}

	for _, tt := range tests {
		def := validDefinition()
		def.Mounts = []string{tt.spec}
		err := def.Validate()
		if tt.ok {
			assert.NoError(t, err, "mount %q should be accepted", tt.spec)
		} else {
			assert.Error(t, err, "mount %q should be rejected", tt.spec)
		}
	}
}

func TestContainerDefinitionValidate_Ports(t *testing.T) {
	tests := []struct {
		spec string
		ok   bool
	}{
		{"8080:80", true},
		{"1:65535", true},
		{"80", false},
		{"0:80", false},
		{"8080:99999", false},
		{"http:80", false},
	}

	for _, tt := range tests {
		def := validDefinition()
		def.Ports = []string{tt.spec}
		err := def.Validate()
		if tt.ok {
			assert.NoError(t, err, "port %q should be accepted", tt.spec)
		} else {
			assert.Error(t, err, "port %q should be rejected", tt.spec)
		}
	}
}

func TestContainerDefinitionValidate_Restart(t *testing.T) {
	def := validDefinition()
	def.Restart = "sometimes"

	err := def.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "restart", verr.Field)
}

func TestHostPorts(t *testing.T) {
	def := validDefinition()
	def.Ports = []string{"8080:80", "8443:443"}

	assert.Equal(t, []int{8080, 8443}, def.HostPorts())
}

func TestGroupDefinitionValidate(t *testing.T) {
	g := &GroupDefinition{Name: "backend", Members: []string{"db", "cache"}}
	require.NoError(t, g.Validate())

	g.Master = "db"
	require.NoError(t, g.Validate(), "master listed as member should be accepted")

	g.Master = "missing"
	err := g.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "master", verr.Field, "master must be a member")

	g = &GroupDefinition{Name: ""}
	assert.Error(t, g.Validate())
}
