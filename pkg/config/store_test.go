package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	t.Run("missing file is an empty store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		store, err := NewFileStore(path)
		require.NoError(t, err)

		assert.Equal(t, path, store.Path())
		assert.False(t, store.IsModified())
		all, err := store.GetAll()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("default path", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		store, err := NewFileStore("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".voidvault", "config.json"), store.Path())
	})

	t.Run("loads existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
  "version": "1",
  "sections": {"generator": {"host_path": "/opt/host"}}
}`), 0600))

		store, err := NewFileStore(path)
		require.NoError(t, err)
		section, err := store.GetSection("generator")
		require.NoError(t, err)
		assert.Equal(t, "/opt/host", section["host_path"])
		assert.Equal(t, "1", store.Version())
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		_, err := NewFileStore(path)
		assert.ErrorContains(t, err, "failed to decode config file")
	})
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.SetSection("rules", map[string]interface{}{"watch": false}))
	assert.True(t, store.IsModified())
	require.NoError(t, store.Save())
	assert.False(t, store.IsModified())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp file is renamed away")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Version  string                            `json:"version"`
		Sections map[string]map[string]interface{} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, storeVersion, doc.Version)
	assert.Equal(t, false, doc.Sections["rules"]["watch"])

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	section, err := reloaded.GetSection("rules")
	require.NoError(t, err)
	assert.Equal(t, false, section["watch"])
}

func TestFileStore_CopiesData(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	input := map[string]interface{}{"account": "alice"}
	require.NoError(t, store.SetSection("generator", input))
	input["account"] = "mallory"

	got, err := store.GetSection("generator")
	require.NoError(t, err)
	assert.Equal(t, "alice", got["account"])
	got["account"] = "eve"

	all, err := store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, "alice", all["generator"]["account"])

	require.NoError(t, store.SetAll(map[string]map[string]interface{}{"rules": {"path": "/tmp/r.json"}}))
	all, err = store.GetAll()
	require.NoError(t, err)
	assert.NotContains(t, all, "generator")
	assert.Equal(t, "/tmp/r.json", all["rules"]["path"])

	missing, err := store.GetSection("nothing")
	require.NoError(t, err)
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}
