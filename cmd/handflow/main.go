// handflow turns hand landmarks into rotation, proximity and scroll signals
// and serves them to browser clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-handflow/internal/config"
	"github.com/teslashibe/go-handflow/internal/log"
	"github.com/teslashibe/go-handflow/pkg/fanout"
	"github.com/teslashibe/go-handflow/pkg/hub"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"github.com/teslashibe/go-handflow/pkg/landmark/camera"
	"github.com/teslashibe/go-handflow/pkg/lifecycle"
	"github.com/teslashibe/go-handflow/pkg/tracking"
	"github.com/teslashibe/go-handflow/pkg/web"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, activate, accessLog := parseFlags()
	log.Init(cfg.LogLevel)

	if err := run(cfg, activate, accessLog); err != nil {
		log.Error("handflow exited", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads env configuration and applies command line overrides.
func parseFlags() (config.Config, bool, bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	port := flag.String("port", cfg.Port, "HTTP listen port (HANDFLOW_PORT)")
	source := flag.String("source", cfg.Source, "Landmark source: remote, camera, replay (HANDFLOW_SOURCE)")
	replay := flag.String("replay", cfg.ReplayPath, "JSON-lines recording for the replay source")
	preset := flag.String("preset", cfg.Preset, "Tracking preset: default, smooth, responsive")
	static := flag.String("static", cfg.StaticDir, "Directory served at /")
	debug := flag.Bool("debug", false, "Enable debug logging")
	activate := flag.Bool("activate", false, "Start tracking immediately")
	accessLog := flag.Bool("access-log", false, "Log every HTTP request")
	flag.Parse()

	cfg.Port, cfg.Source, cfg.ReplayPath, cfg.Preset, cfg.StaticDir = *port, *source, *replay, *preset, *static
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	return cfg, *activate, *accessLog
}

func run(cfg config.Config, activate, accessLog bool) error {
	trackingCfg, err := cfg.Tracking()
	if err != nil {
		return err
	}

	source, remote, err := buildSource(cfg)
	if err != nil {
		return err
	}

	frames := fanout.New[tracking.Frame]("frames")
	defer frames.Close()

	signalHub := hub.New("signal")
	manager := lifecycle.NewManager(source, lifecycle.Options{
		Config:        trackingCfg,
		Scroller:      web.ScrollBroadcaster{Hub: signalHub},
		Frames:        frames,
		OnStateChange: web.StatusBroadcaster(signalHub),
	})

	server := web.NewServer(manager, signalHub, web.Options{
		Port:      cfg.Port,
		StaticDir: cfg.StaticDir,
		Remote:    remote,
		Frames:    frames,
		AccessLog: accessLog,
	})

	log.Info("handflow starting",
		"source", cfg.Source,
		"preset", cfg.Preset,
		"port", cfg.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)

	if activate {
		g.Go(func() error {
			actx, acancel := context.WithTimeout(ctx, cfg.AttachTimeout+5*time.Second)
			defer acancel()
			if _, err := manager.Activate(actx); err != nil {
				// Stay up so tracking can be retried over the API
				log.Warn("initial activation failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		if err := manager.Close(); err != nil {
			log.Warn("tracking shutdown", "error", err)
		}
		return server.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildSource creates the configured landmark source. The remote source is
// also returned so the server can feed it.
func buildSource(cfg config.Config) (landmark.Source, *landmark.RemoteSource, error) {
	switch cfg.Source {
	case config.SourceRemote:
		remote := landmark.NewRemoteSource(cfg.AttachTimeout)
		return remote, remote, nil
	case config.SourceCamera:
		camCfg := cameraConfig(cfg)
		if err := camCfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("camera config: %w", err)
		}
		return camera.New(camCfg), nil, nil
	case config.SourceReplay:
		return landmark.NewReplaySource(cfg.Replay(), nil), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// cameraConfig projects the env settings onto the capture defaults.
func cameraConfig(cfg config.Config) camera.Config {
	cam := camera.DefaultConfig()
	cam.Device = cfg.CameraDevice
	cam.Width = cfg.CameraWidth
	cam.Height = cfg.CameraHeight
	cam.ModelPath = cfg.ModelPath
	cam.PresenceThreshold = cfg.PresenceThreshold
	return cam
}
