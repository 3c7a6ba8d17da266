package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"EnigmaNetz/Enigma-Packet-Viewer/config"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/api"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/pcap"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/replay"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/metadata"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/netif"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/version"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var (
		listen string
		replay string
		speed  float64
		static string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: `  packet-viewer serve --listen 127.0.0.1:5000
  packet-viewer serve --replay trace.pcap --speed 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := g.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Server.ListenAddr = listen
			}
			if flags.Changed("replay") {
				cfg.Capture.ReplayFile = replay
			}
			if flags.Changed("speed") {
				cfg.Capture.ReplaySpeed = speed
			}
			if flags.Changed("static") {
				cfg.Server.StaticDir = static
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := cfg.InitializeLogging(); err != nil {
				return err
			}
			log := logger.GetLogger()
			defer log.Close()

			if path == "" {
				path = "defaults"
			}
			log.Info("[main] Packet viewer %s starting (config: %s)", version.Version, path)
			log.Debug("[main] Loaded config: %+v", *cfg)

			ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddr, err)
			}
			return runServer(cmd.Context(), cfg, ln)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides server.listen_addr)")
	cmd.Flags().StringVar(&replay, "replay", "", "replay a pcap file instead of capturing live")
	cmd.Flags().Float64Var(&speed, "speed", 1, "replay speed multiplier")
	cmd.Flags().StringVar(&static, "static", "", "directory of static files served at /")
	return cmd
}

// newOpener picks the capture primitive: a replay file when configured,
// live libpcap otherwise
func newOpener(cfg *config.Config) common.Opener {
	if cfg.Capture.ReplayFile != "" {
		return replay.NewOpener(cfg.Capture.ReplayFile, cfg.Capture.ReplaySpeed)
	}
	promisc := true
	if cfg.Capture.Promiscuous != nil {
		promisc = *cfg.Capture.Promiscuous
	}
	return pcap.NewOpener(promisc)
}

func newSession(cfg *config.Config) *capture.Session {
	return capture.NewSession(newOpener(cfg), capture.Options{
		BufferCapacity: cfg.Capture.BufferCapacity,
		PollTimeout:    cfg.PollTimeout(),
		PollMaxFrames:  cfg.Capture.PollMaxFrames,
		StopTimeout:    cfg.StopTimeout(),
		Logger:         logger.GetLogger(),
	})
}

// runServer serves the API on ln until ctx is cancelled
func runServer(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	session := newSession(cfg)
	server := api.NewServer(api.Config{
		StaticDir:    cfg.Server.StaticDir,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}, session, netif.NewSystem(), metadata.NewCollector())

	if cfg.Capture.ReplayFile != "" {
		logger.GetLogger().Info("[main] Replaying %s; any interface name starts the replay", cfg.Capture.ReplayFile)
	}
	return server.ServeListener(ctx, ln)
}
