package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir moves into an empty directory so no stray config.yaml or .env is
// picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// =============================================================================
// MAIN CONFIG
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "Datos Normalizados", cfg.SheetName)
	assert.Equal(t, "depo", cfg.Keller.AccountLabel)
	assert.Equal(t, []string{"*.csv"}, cfg.FolderPatterns)
	assert.Equal(t, ';', cfg.CSVComma())
	assert.False(t, cfg.StrictRowCount)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "custom.yaml", `
output_dir: ./salida
sheet_name: Hoja
timeout: 90s
keller:
  tax_rate: "10.5"
log_level: debug
`)
	t.Setenv("NORMALIZER_OUTPUT_DIR", "/tmp/env-out")
	t.Setenv("NORMALIZER_KELLER_ACCOUNT_LABEL", "deposito")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-out", cfg.OutputDir)
	assert.Equal(t, "Hoja", cfg.SheetName)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "10.5", cfg.Keller.TaxRate)
	assert.Equal(t, "deposito", cfg.Keller.AccountLabel)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	writeFile(t, dir, ".env", "NORMALIZER_SHEET_NAME=Desde env\n")
	t.Cleanup(func() { os.Unsetenv("NORMALIZER_SHEET_NAME") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Desde env", cfg.SheetName)
}

func TestLoad_Invalid(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "bad.yaml", `
log_level: loud
output_name_format: out.csv
csv_delimiter: ";;"
`)

	_, err := Load(path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
	assert.Contains(t, err.Error(), "LogLevel must be one of: debug, info, warn, error")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t)
	_, err := Load("nope.yaml")
	assert.Error(t, err)
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func TestLoadAccounts_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cuentas.json", `{
  "Monroe": {"centro": 12345678901234, "norte": "0042"},
  "keller": {"depo": 900}
}`)

	store, err := LoadAccounts(path)
	require.NoError(t, err)

	id, err := store.Lookup("monroe", "centro")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234", id)

	id, err = store.Lookup("MONROE", "norte")
	require.NoError(t, err)
	assert.Equal(t, "0042", id)

	_, err = store.Lookup("keller", "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = store.Lookup("suizo", "depo")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.Equal(t, []string{"keller", "monroe"}, store.Providers())
	assert.Equal(t, []Account{{Label: "centro", ID: "12345678901234"}, {Label: "norte", ID: "0042"}}, store.Accounts("monroe"))
}

func TestLoadAccounts_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cuentas.yaml", "keller:\n  depo: 900\nsuizo:\n  central: \"A-1\"\n")

	store, err := LoadAccounts(path)
	require.NoError(t, err)
	id, err := store.Lookup("keller", "depo")
	require.NoError(t, err)
	assert.Equal(t, "900", id)
}

func TestLoadAccounts_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAccounts(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.json", `{"monroe": {"x": [1]}}`)
	_, err = LoadAccounts(bad)
	assert.ErrorContains(t, err, "unsupported account id type")
}

func TestAccountStore_Resolve(t *testing.T) {
	store := NewAccountStore(map[string]map[string]string{"monroe": {"centro": "111"}})
	assert.Equal(t, "111", store.Resolve("monroe", "centro"))
	assert.Equal(t, "999", store.Resolve("monroe", "999"))

	var none *AccountStore
	assert.Equal(t, "999", none.Resolve("monroe", "999"))
	_, err := none.Lookup("monroe", "centro")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Empty(t, none.Providers())
	assert.Empty(t, none.Accounts("monroe"))
}

// =============================================================================
// MANIFEST
// =============================================================================

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lotes/febrero.yaml", `
output: salida.xlsx
items:
  - path: monroe.csv
    provider: Monroe
    account: centro
  - folder: /data/keller
    provider: keller
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Items, 2)
	assert.Equal(t, filepath.Join(dir, "lotes", "salida.xlsx"), m.Output)
	assert.Equal(t, filepath.Join(dir, "lotes", "monroe.csv"), m.Items[0].Path)
	assert.Equal(t, "Monroe", m.Items[0].Provider)
	assert.Equal(t, "/data/keller", m.Items[1].Folder)
}

func TestLoadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := map[string]string{
		"no items":    "items: []\n",
		"no provider": "items:\n  - path: a.csv\n",
		"no source":   "items:\n  - provider: monroe\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name+".yaml", content)
			_, err := LoadManifest(path)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}
