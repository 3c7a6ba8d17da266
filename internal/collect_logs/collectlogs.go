// Package collect_logs builds the diagnostics bundle attached to bug reports.
package collect_logs

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/metadata"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/netif"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/version"
)

// Options selects what goes into the bundle. Zero values skip the entry.
type Options struct {
	// LogDir is walked and every regular file added under logs/
	LogDir string
	// ConfigPath is copied as config.json when it exists
	ConfigPath string
	// Interfaces, when set, is listed into interfaces.json
	Interfaces netif.Enumerator
	// Host, when set, is reported into host.json
	Host *metadata.Collector
}

// FileName returns the default bundle name for t
func FileName(t time.Time) string {
	return "packet-viewer-logs-" + t.Format("20060102-150405") + ".zip"
}

// CollectLogs creates a zip archive with logs, config, version, interface
// and system info. Missing inputs are skipped; only failures writing the
// archive itself are returned.
func CollectLogs(zipName string, opts Options) (err error) {
	zipFile, err := os.Create(zipName)
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	defer func() {
		if cerr := zipFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close zip: %w", cerr)
		}
	}()

	zw := zip.NewWriter(zipFile)
	log := logger.GetLogger()

	if opts.LogDir != "" {
		if err := addDirToZip(zw, opts.LogDir, "logs"); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("[collect-logs] Skipping part of %s: %v", opts.LogDir, err)
		}
	}

	if opts.ConfigPath != "" {
		if err := addFileToZip(zw, opts.ConfigPath, "config.json"); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("[collect-logs] Skipping %s: %v", opts.ConfigPath, err)
		}
	}

	if err := addStringToZip(zw, "version.txt", version.Version+"\n"); err != nil {
		return err
	}
	if err := addStringToZip(zw, "system-info.txt", systemInfo()); err != nil {
		return err
	}

	if opts.Host != nil {
		if err := addJSONToZip(zw, "host.json", opts.Host.Collect("")); err != nil {
			return err
		}
	}

	if opts.Interfaces != nil {
		report := struct {
			Interfaces []netif.Interface `json:"interfaces"`
			Error      string            `json:"error,omitempty"`
		}{}
		list, lerr := netif.List(opts.Interfaces)
		report.Interfaces = list
		if lerr != nil {
			report.Error = lerr.Error()
		}
		if err := addJSONToZip(zw, "interfaces.json", report); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return nil
}

func addFileToZip(zw *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}

func addStringToZip(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	return nil
}

func addJSONToZip(zw *zip.Writer, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return addStringToZip(zw, name, string(data)+"\n")
}

// addDirToZip adds every regular file under dir, named relative to prefix
// with forward slashes
func addDirToZip(zw *zip.Writer, dir, prefix string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFileToZip(zw, path, prefix+"/"+filepath.ToSlash(rel))
	})
}

func systemInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "OS: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "Arch: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(&b, "NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintf(&b, "GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
	if hn, err := os.Hostname(); err == nil {
		fmt.Fprintf(&b, "Hostname: %s\n", hn)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Fprintf(&b, "Memory: Alloc=%d TotalAlloc=%d Sys=%d NumGC=%d\n", m.Alloc, m.TotalAlloc, m.Sys, m.NumGC)
	return b.String()
}
