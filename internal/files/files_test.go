package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "tttool"), []byte("#!/bin/sh\n"), 0o755))

	found, err := FindUp("tttool", nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "tttool"), found)

	found, err = FindUp("does-not-exist-anywhere", nested)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestResolveExecutable(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	tool := filepath.Join(root, "ttsim-test-tool")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))

	cases := []struct {
		name   string
		exe    string
		exp    string
		expErr bool
	}{
		{
			name: "explicit path",
			exe:  tool,
			exp:  tool,
		},
		{
			name: "found above the working directory",
			exe:  "ttsim-test-tool",
			exp:  tool,
		},
		{
			name:   "explicit path that does not exist",
			exe:    filepath.Join(root, "missing"),
			expErr: true,
		},
		{
			name:   "explicit path to a directory",
			exe:    nested,
			expErr: true,
		},
		{
			name:   "not found anywhere",
			exe:    "ttsim-no-such-tool",
			expErr: true,
		},
		{
			name:   "empty",
			expErr: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path, err := ResolveExecutable(c.exe, nested)
			if c.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.exp, path)
		})
	}
}
