package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/sensor-alert-engine/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func TestFileService_ReadYamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: probe\ncount: 3\n"), 0600))

	var out sample
	err := file.NewFileService().ReadYamlFile(path, &out)

	assert.NoError(t, err)
	assert.Equal(t, sample{Name: "probe", Count: 3}, out)
}

func TestFileService_ReadYamlFile_UnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: probe\ncolour: red\n"), 0600))

	var out sample
	err := file.NewFileService().ReadYamlFile(path, &out)

	assert.Error(t, err)
}

func TestFileService_ReadYamlFile_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	var out sample
	assert.NoError(t, file.NewFileService().ReadYamlFile(path, &out))
}

func TestFileService_IsFileExists(t *testing.T) {
	fs := file.NewFileService()
	dir := t.TempDir()

	exists, err := fs.IsFileExists(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.False(t, exists)

	exists, err = fs.IsFileExists(dir)
	assert.NoError(t, err)
	assert.True(t, exists)
}
