package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

const yamlDef = `name: web
image: docker.io/library/nginx:1.27
group: frontend
environment:
  - MODE=production
ports:
  - "8080:80"
restart: always
`

const jsoncDef = `{
  // frontend proxy, joins the app container's namespace
  "name": "proxy",
  "image": "docker.io/library/haproxy:2.9",
  "net": "web"
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	def, err := LoadFile(writeTemp(t, "web.yaml", yamlDef))
	require.NoError(t, err)

	assert.Equal(t, "web", def.Name)
	assert.Equal(t, "docker.io/library/nginx:1.27", def.Image)
	assert.Equal(t, []string{"MODE=production"}, def.Environment)
	assert.Equal(t, "always", def.Restart)
}

func TestLoadFile_JSONC(t *testing.T) {
	def, err := LoadFile(writeTemp(t, "proxy.jsonc", jsoncDef))
	require.NoError(t, err)

	assert.Equal(t, "proxy", def.Name)
	assert.Equal(t, "web", def.Net, "comments must be stripped before decoding")
}

// TestParseContainer_UnknownKey verifies strict decoding: a typoed key is
// a validation error, not a silently dropped option.
func TestParseContainer_UnknownKey(t *testing.T) {
	_, err := ParseContainer([]byte("name: web\nimage: nginx\nmonts:\n  - /a:/b\n"), false)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "definition", verr.Field)
}

func TestParseContainer_InvalidDefinition(t *testing.T) {
	// Parses fine but violates the image-mode invariant.
	_, err := ParseContainer([]byte("name: web\n"), false)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "image", verr.Field)
}

func TestStoreDefineLoadList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	src := writeTemp(t, "web.yaml", yamlDef)
	def, err := store.Define(src)
	require.NoError(t, err)
	assert.Equal(t, "web", def.Name)

	// The definition is stored normalized and rereadable.
	loaded, err := store.Load("web")
	require.NoError(t, err)
	assert.Equal(t, def, loaded)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, names)

	_, err = store.Load("ghost")
	var uerr *model.UnknownContainerError
	assert.ErrorAs(t, err, &uerr)
}

func TestStoreLoadAllSorted(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, doc := range []string{
		"name: zeta\nimage: busybox\n",
		"name: alpha\nimage: busybox\n",
	} {
		_, err := store.Define(writeTemp(t, "def.yaml", doc))
		require.NoError(t, err)
	}

	defs, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name, "LoadAll order is stable across runs")
	assert.Equal(t, "zeta", defs[1].Name)
}

func TestStoreDump(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Define(writeTemp(t, "web.yaml", yamlDef))
	require.NoError(t, err)

	dest := t.TempDir()
	path, err := store.Dump("web", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "web.yaml"), path)

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "web", def.Name)
}

func TestStoreRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Define(writeTemp(t, "web.yaml", yamlDef))
	require.NoError(t, err)

	require.NoError(t, store.Remove("web"))
	assert.Error(t, store.Remove("web"), "removing twice should fail")
}

func TestStoreGroupsRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	// Missing groups.yaml is an empty, valid store.
	groups, err := store.LoadGroups()
	require.NoError(t, err)
	assert.Empty(t, groups)

	in := map[string]*model.GroupDefinition{
		"backend": {
			Name:    "backend",
			Master:  "db",
			Members: []string{"db", "app"},
			Defaults: &model.ContainerDefinition{
				Restart: "always",
			},
		},
	}
	require.NoError(t, store.SaveGroups(in))

	out, err := store.LoadGroups()
	require.NoError(t, err)
	require.Contains(t, out, "backend")
	assert.Equal(t, "db", out["backend"].Master)
	assert.Equal(t, []string{"db", "app"}, out["backend"].Members)
	require.NotNil(t, out["backend"].Defaults)
	assert.Equal(t, "always", out["backend"].Defaults.Restart)

	names, err := store.GroupNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"backend"}, names)
}

func TestStoreLoadGroups_InvalidMaster(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	raw := "backend:\n  master: ghost\n  members:\n    - db\n"
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "groups.yaml"), []byte(raw), 0o644))

	_, err = store.LoadGroups()
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "master", verr.Field)
}
