// Command packet-viewer serves live packet capture over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"EnigmaNetz/Enigma-Packet-Viewer/config"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/version"
)

// configPaths lists where a config file is looked for when --config is not
// given. The first existing file wins.
func configPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\ProgramData\PacketViewer\config.json`,
			"config.json",
		}
	}
	return []string{
		"/etc/packet-viewer/config.json",
		"config.json",
	}
}

func loopbackName() string {
	switch runtime.GOOS {
	case "windows":
		return `\Device\NPF_Loopback`
	case "darwin", "freebsd", "openbsd":
		return "lo0"
	default:
		return "lo"
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	envFile    string
}

// loadConfig resolves the config file, loads .env and applies overrides
func (g *globalFlags) loadConfig() (*config.Config, string, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return nil, "", err
	}

	path := g.configPath
	if path == "" {
		for _, candidate := range configPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "packet-viewer",
		Short: "Live packet capture with an HTTP API",
		Long: `packet-viewer captures frames from a network interface into a bounded
in-memory buffer and serves them over HTTP: list, per-frame details and
pcap export.

Configuration is read from --config, or the first of
/etc/packet-viewer/config.json and ./config.json that exists. A .env file
and PACKET_VIEWER_* variables override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config.json")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file with PACKET_VIEWER_* overrides")

	cmd.AddCommand(
		newServeCommand(g),
		newInterfacesCommand(),
		newCollectLogsCommand(g),
		newInspectCommand(),
		newSelftestCommand(g),
		newVersionCommand(),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
