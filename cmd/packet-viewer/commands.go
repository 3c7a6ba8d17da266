package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	collect_logs "EnigmaNetz/Enigma-Packet-Viewer/internal/collect_logs"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/export"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/metadata"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/netif"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/processor/frame"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/version"
	"EnigmaNetz/Enigma-Packet-Viewer/load"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}

func newInterfacesCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "interfaces",
		Short: "List capturable interfaces, most useful first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printInterfaces(cmd, netif.NewSystem(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printInterfaces(cmd *cobra.Command, enum netif.Enumerator, asJSON bool) error {
	list, err := netif.List(enum)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY\tTYPE\tSTATUS")
	for _, iface := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", iface.Name, iface.DisplayName, iface.Type, iface.Status)
	}
	return tw.Flush()
}

func newCollectLogsCommand(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "collect-logs",
		Short: "Package logs, config and diagnostics into a zip archive for support",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := g.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if output == "" {
				output = collect_logs.FileName(time.Now())
			}

			logDir := "logs"
			if cfg.Logging.File != "" {
				logDir = filepath.Dir(cfg.Logging.File)
			}
			err = collect_logs.CollectLogs(output, collect_logs.Options{
				LogDir:     logDir,
				ConfigPath: path,
				Interfaces: netif.NewSystem(),
				Host:       metadata.NewCollector(),
			})
			if err != nil {
				return fmt.Errorf("failed to collect logs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with logs, config, and diagnostics.\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive name (default packet-viewer-logs-<timestamp>.zip)")
	return cmd
}

func newInspectCommand() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print statistics for a pcap or pcapng file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			frames, err := export.Read(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NO\tTIME\tSOURCE\tDESTINATION\tPROTOCOL\tLENGTH\tINFO")
				for _, r := range frame.ClassifyAll(frames) {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", r.No, r.Time, r.Src, r.Dst, r.Protocol, r.Length, r.Info)
				}
				return tw.Flush()
			}

			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			stats, err := export.Stats(f)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list frames instead of statistics")
	return cmd
}

func newSelftestCommand(g *globalFlags) *cobra.Command {
	var (
		iface    string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Capture self-generated loopback HTTP traffic and verify the export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Capture.ReplayFile = ""

			ctx, cancel := context.WithTimeout(cmd.Context(), duration+cfg.StopTimeout()+5*time.Second)
			defer cancel()

			res, err := load.RunSyntheticCaptureLoad(ctx, newSession(cfg), load.Config{
				Interface: iface,
				Duration:  duration,
			})
			if err != nil {
				return fmt.Errorf("selftest failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requests: %d (failed %d)\nFrames: %d\n%s\n",
				res.Requests, res.Failed, res.Frames, res.Stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&iface, "interface", loopbackName(), "interface carrying loopback traffic")
	cmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "how long to generate traffic")
	return cmd
}
