package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setuptask/internal/wizard"
)

const sampleCatalog = `
categories:
  - id: web
    name: Web
tasks:
  - id: base-packages
    category: web
    name: Base packages
    command: apt-get -y install curl
  - id: caddy-server
    category: web
    name: Caddy server
    prerequisite: base-packages
    command: /opt/caddy/install.sh "$SETUP_SITE_DOMAIN"
    working_dir: /opt/caddy
    steps:
      - field: site_domain
        prompt: Site domain
        validator: domain
        required: true
      - field: tls_mode
        prompt: TLS mode
        options: [auto, manual, disabled]
        default: "1"
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)

	require.Len(t, c.Tasks, 2)
	caddy := c.Tasks[1]
	assert.Equal(t, "caddy-server", caddy.ID)
	assert.Equal(t, "base-packages", caddy.Prerequisite)
	assert.Equal(t, "/opt/caddy", caddy.WorkingDir)
	require.Len(t, caddy.Steps, 2)
	assert.Equal(t, "domain", caddy.Steps[0].Validator)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownValidator(t *testing.T) {
	_, err := Load(writeCatalog(t, `
tasks:
  - id: bad-task
    category: web
    name: Bad task
    command: "true"
    steps:
      - field: zip
        prompt: Zip code
        validator: zipcode
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown validator")
}

func TestLoad_RejectsMissingCommand(t *testing.T) {
	_, err := Load(writeCatalog(t, `
tasks:
  - id: no-command
    category: web
    name: No command
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command")
}

func TestBuildRegistry(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)

	registry, err := c.BuildRegistry()
	require.NoError(t, err)
	assert.True(t, registry.Validated())

	task, err := registry.Lookup("caddy-server")
	require.NoError(t, err)
	require.NotNil(t, task.PrerequisiteID)
	assert.Equal(t, "base-packages", *task.PrerequisiteID)
	require.NotNil(t, task.Executor.WorkingDir)
	assert.Equal(t, "/opt/caddy", *task.Executor.WorkingDir)
}

func TestBuildRegistry_RejectsUnknownPrerequisite(t *testing.T) {
	c := &Catalog{Tasks: []TaskSpec{
		{ID: "a", Category: "web", Name: "A", Prerequisite: "nope", Command: "true"},
	}}
	_, err := c.BuildRegistry()
	assert.Error(t, err)
}

func TestWizardDefinition(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)

	def, ok := c.WizardDefinition("caddy-server")
	require.True(t, ok)
	require.Len(t, def.Steps, 2)
	assert.Equal(t, wizard.KindDomain, def.Steps[0].Kind)
	assert.True(t, def.Steps[0].Required)
	assert.Equal(t, []string{"auto", "manual", "disabled"}, def.Steps[1].Options)

	def, ok = c.WizardDefinition("base-packages")
	require.True(t, ok)
	assert.Empty(t, def.Steps)

	_, ok = c.WizardDefinition("ghost")
	assert.False(t, ok)
}

func TestBuiltinCatalogIsValid(t *testing.T) {
	c := Builtin()
	require.NoError(t, c.check())

	registry, err := c.BuildRegistry()
	require.NoError(t, err)
	assert.True(t, registry.Validated())
	assert.Len(t, registry.Tasks(), len(c.Tasks))

	def, ok := c.WizardDefinition("ufw-firewall")
	require.True(t, ok)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, "22", def.Steps[0].Default)
}
