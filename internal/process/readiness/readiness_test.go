package readiness_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/process/readiness"
)

func TestDefaultMatcher(t *testing.T) {
	tests := map[string]struct {
		host    string
		port    int
		line    string
		expName string
		expOK   bool
	}{
		"The GUI line with the configured address should match.": {
			host:    "127.0.0.1",
			port:    8188,
			line:    "To see the GUI go to: http://127.0.0.1:8188",
			expName: "gui-url",
			expOK:   true,
		},

		"A wildcard listen address should match the GUI line with the same address.": {
			host:    "0.0.0.0",
			port:    8188,
			line:    "To see the GUI go to: http://0.0.0.0:8188",
			expName: "gui-url",
			expOK:   true,
		},

		"The local URL with the configured port should match.": {
			host:    "0.0.0.0",
			port:    9000,
			line:    "INFO serving on http://127.0.0.1:9000/",
			expName: "local-url",
			expOK:   true,
		},

		"The local URL with another port should not match.": {
			host:  "127.0.0.1",
			port:  9000,
			line:  "To see the GUI go to: http://127.0.0.1:8188",
			expOK: false,
		},

		"The literal marker should match regardless of the port.": {
			host:    "127.0.0.1",
			port:    1234,
			line:    "Starting server",
			expName: "starting-server",
			expOK:   true,
		},

		"Matching should be case sensitive.": {
			host:  "127.0.0.1",
			port:  8188,
			line:  "starting server",
			expOK: false,
		},

		"Unrelated lines should not match.": {
			host:  "127.0.0.1",
			port:  8188,
			line:  "Total VRAM 24576 MB, total RAM 64000 MB",
			expOK: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			m := readiness.Default().Compile(test.host, test.port)
			gotName, gotOK := m.Match(test.line)

			assert.Equal(test.expOK, gotOK)
			assert.Equal(test.expName, gotName)
		})
	}
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		yaml   string
		expSet readiness.Set
		expErr bool
	}{
		"A valid document should load.": {
			yaml: `
version: 1
markers:
  - name: ready
    template: "listening on {{ host }}:{{port}}"
`,
			expSet: readiness.Set{Version: 1, Markers: []readiness.Marker{{Name: "ready", Template: "listening on {{ host }}:{{port}}"}}},
		},

		"An unknown version should fail.": {
			yaml: `
version: 2
markers:
  - name: ready
    template: "ready"
`,
			expErr: true,
		},

		"A document without markers should fail.": {
			yaml:   `version: 1`,
			expErr: true,
		},

		"An unknown placeholder should fail.": {
			yaml: `
version: 1
markers:
  - name: ready
    template: "ready on {{address}}"
`,
			expErr: true,
		},

		"Duplicated marker names should fail.": {
			yaml: `
version: 1
markers:
  - name: ready
    template: "a"
  - name: ready
    template: "b"
`,
			expErr: true,
		},

		"Unknown fields should fail.": {
			yaml: `
version: 1
markers:
  - name: ready
    regex: ".*"
`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			gotSet, err := readiness.Load(strings.NewReader(test.yaml))

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expSet, gotSet)
			}
		})
	}
}

func TestLoadFileRendersTemplates(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "readiness.yaml")
	err := os.WriteFile(path, []byte("version: 1\nmarkers:\n  - name: ready\n    template: \"up at {{host}}:{{ port }}\"\n"), 0o644)
	require.NoError(err)

	set, err := readiness.LoadFile(path)
	require.NoError(err)

	m := set.Compile("localhost", 7777)
	name, ok := m.Match("[srv] up at localhost:7777 (pid 12)")
	assert.True(ok)
	assert.Equal("ready", name)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := readiness.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateVersion(t *testing.T) {
	err := readiness.Set{Version: 0, Markers: []readiness.Marker{{Name: "a", Template: "b"}}}.Validate()
	assert.ErrorIs(t, err, model.ErrNotValid)
}
