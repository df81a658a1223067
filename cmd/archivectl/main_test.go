package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/backup"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/config"
)

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		out := bytes.Buffer{}
		confirm := promptConfirm(strings.NewReader(tt.input), &out)
		got := confirm(context.Background(), backup.Counts{Arts: 3, Categories: 1, TagCategories: 2})
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "3 arts, 1 categories and 2 tag categories")
	}
}

const fixtureBackup = `{
	"exportedAt": "2024-03-01T10:00:00.000Z",
	"arts": [{"id": 1700000000000, "image": "data:a", "author": "amy", "tags": ["cat"], "createdAt": "2023-11-14T22:13:20.000Z"}]
}`

func TestRunImportExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARTARCHIVE_DB_DRIVER", config.DriverSQLite)
	t.Setenv("ARTARCHIVE_DB_PATH", filepath.Join(dir, "archivectl.db"))
	t.Setenv("ARTARCHIVE_DB_LOG_LEVEL", "silent")
	t.Setenv("ARTARCHIVE_LOG_MODE", config.LogModeProduction)

	in := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(in, []byte(fixtureBackup), 0o600))

	out, errOut := bytes.Buffer{}, bytes.Buffer{}
	code := run([]string{"import", in}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "imported 1/0/0")

	exported := filepath.Join(dir, "out.json")
	out.Reset()
	code = run([]string{"export", "-o", exported}, strings.NewReader(""), &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "exported 1 arts")

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	b, err := backup.Parse(data)
	require.NoError(t, err)
	require.Len(t, b.Arts, 1)
	assert.Equal(t, "amy", b.Arts[0].Author)

	out.Reset()
	errOut.Reset()
	code = run([]string{"import", "-mode", "overwrite", in}, strings.NewReader("n\n"), &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "import not confirmed")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	errOut := bytes.Buffer{}
	assert.Equal(t, 2, run([]string{"restore"}, strings.NewReader(""), &bytes.Buffer{}, &errOut))
	assert.Contains(t, errOut.String(), "usage: archivectl")

	assert.Equal(t, 2, run(nil, strings.NewReader(""), &bytes.Buffer{}, &errOut))
}
