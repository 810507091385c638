package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/printer"
)

func versionsFixture() []model.Version {
	return []model.Version{
		{Ref: "v0.3.10", Kind: model.VersionKindTag, Commit: "0123456789abcdef", Date: time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC), Subject: "Release", Current: true},
		{Ref: "a1b2c3d4", Kind: model.VersionKindCommit, Commit: "a1b2c3d4e5f6", Subject: "Fix loader"},
	}
}

func TestTablePrinterPrintVersions(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintVersions(versionsFixture()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "REF")
	assert.True(t, strings.HasPrefix(lines[1], "*"), "the current version should be marked")
	assert.Contains(t, lines[1], "v0.3.10")
	assert.Contains(t, lines[1], "01234567 ")
	assert.Contains(t, lines[1], "2026-01-30")
	assert.False(t, strings.HasPrefix(lines[2], "*"))
}

func TestJSONPrinterPrintVersions(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintVersions(versionsFixture()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "v0.3.10", got[0]["ref"])
	assert.Equal(t, true, got[0]["current"])
	assert.Equal(t, "2026-01-30T10:00:00Z", got[0]["date"])
	assert.NotContains(t, got[1], "date")
}

func TestTablePrinterPrintNodes(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintNodes([]model.Node{
		{Name: "ComfyUI-Manager", Commit: "0123456789", Upstream: "origin/main", Remote: "https://github.com/ltdrdata/ComfyUI-Manager"},
		{Name: "local-node", Disabled: true},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ComfyUI-Manager  yes")
	assert.Contains(t, out, "local-node       no")
	assert.Contains(t, out, "origin/main")
}

func TestTablePrinterPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	start := time.Now().Add(-time.Hour)
	err := p.PrintHistory([]model.TaskRecord{
		{ID: "01H", Name: "update all nodes", Status: model.TaskStatusFailed, Error: "git pull failed\nmore", StartedAt: start, FinishedAt: start.Add(3 * time.Second)},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "update all nodes")
	assert.Contains(t, out, "3.0s")
	assert.Contains(t, out, "git pull failed")
	assert.NotContains(t, out, "more")
}

func TestPrintSettingsMasksSecrets(t *testing.T) {
	s := model.DefaultSettings()
	s.DiagnosisAPIKey = "AIzaSyA-secret-1234"
	s.Env = map[string]string{"HF_HOME": "/data/hf"}

	var table bytes.Buffer
	require.NoError(t, printer.NewTablePrinter(&table).PrintSettings(s))
	assert.Contains(t, table.String(), "****1234")
	assert.NotContains(t, table.String(), "secret")
	assert.Contains(t, table.String(), "env.HF_HOME")

	var js bytes.Buffer
	require.NoError(t, printer.NewJSONPrinter(&js).PrintSettings(s))
	assert.Contains(t, js.String(), `"diagnosis_api_key": "****1234"`)
	assert.Contains(t, js.String(), `"port": 8188`)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", printer.MaskSecret(""))
	assert.Equal(t, "****", printer.MaskSecret("abc"))
	assert.Equal(t, "****cdef", printer.MaskSecret("abcdef"))
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
