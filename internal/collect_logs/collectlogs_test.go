package collect_logs

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/metadata"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/netif"
)

type stubEnumerator struct {
	ids []string
	err error
}

func (s stubEnumerator) ListInterfaces() ([]string, error) { return s.ids, s.err }
func (s stubEnumerator) AddressOf(id string) (string, error) {
	return "192.168.1.20", nil
}
func (s stubEnumerator) Stats(id string) (netif.LinkStats, error) {
	return netif.LinkStats{Up: true}, nil
}
func (s stubEnumerator) Description(id string) string { return "" }

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	files := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(data)
	}
	return files
}

func TestCollectLogs_CreatesZipWithExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(filepath.Join(logDir, "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "viewer.log"), []byte("logdata"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "old", "viewer-1.log.gz"), []byte("gz"), 0o644))
	configPath := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"server": {}}`), 0o644))

	zipName := filepath.Join(dir, "bundle.zip")
	err := CollectLogs(zipName, Options{
		LogDir:     logDir,
		ConfigPath: configPath,
		Interfaces: stubEnumerator{ids: []string{"eth0"}},
		Host:       metadata.NewCollector(),
	})
	require.NoError(t, err)

	files := readZip(t, zipName)
	assert.Equal(t, "logdata", files["logs/viewer.log"])
	assert.Equal(t, "gz", files["logs/old/viewer-1.log.gz"])
	assert.Equal(t, `{"server": {}}`, files["config.json"])
	assert.Contains(t, files, "version.txt")
	assert.Contains(t, files["system-info.txt"], "OS: ")

	var host metadata.Host
	require.NoError(t, json.Unmarshal([]byte(files["host.json"]), &host))
	assert.NotEmpty(t, host.InstanceID)

	var report struct {
		Interfaces []netif.Interface `json:"interfaces"`
	}
	require.NoError(t, json.Unmarshal([]byte(files["interfaces.json"]), &report))
	require.Len(t, report.Interfaces, 1)
	assert.Equal(t, "eth0", report.Interfaces[0].Name)
}

func TestCollectLogs_MissingInputsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	zipName := filepath.Join(dir, "bundle.zip")

	err := CollectLogs(zipName, Options{
		LogDir:     filepath.Join(dir, "no-logs"),
		ConfigPath: filepath.Join(dir, "no-config.json"),
	})
	require.NoError(t, err)

	files := readZip(t, zipName)
	assert.Len(t, files, 2)
	assert.Contains(t, files, "version.txt")
	assert.Contains(t, files, "system-info.txt")
}

func TestCollectLogs_InterfaceFailureIsReported(t *testing.T) {
	zipName := filepath.Join(t.TempDir(), "bundle.zip")
	err := CollectLogs(zipName, Options{Interfaces: stubEnumerator{err: errors.New("no pcap")}})
	require.NoError(t, err)

	files := readZip(t, zipName)
	assert.Contains(t, files["interfaces.json"], "no pcap")
}

func TestCollectLogs_UnwritableDestination(t *testing.T) {
	err := CollectLogs(filepath.Join(t.TempDir(), "missing", "bundle.zip"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create zip")
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "packet-viewer-logs-20240309-140507.zip", FileName(ts))
}
