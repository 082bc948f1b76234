// feed streams a recorded landmark session to a handflow server, standing in
// for a browser detector. With -tail it prints the signals the server
// publishes instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-handflow/internal/httpc"
	"github.com/teslashibe/go-handflow/internal/log"
	"github.com/teslashibe/go-handflow/pkg/landmark"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "handflow server address")
	file := flag.String("file", "", "JSON-lines recording to stream")
	fps := flag.Float64("fps", 30, "Frames per second")
	loop := flag.Bool("loop", false, "Restart the recording when it ends")
	activate := flag.Bool("activate", false, "Activate tracking after connecting")
	fail := flag.String("fail", "", "Report a detector failure instead of streaming (permission_denied, camera_unavailable, detector_unavailable)")
	tail := flag.Bool("tail", false, "Print frames from /ws/signal instead of streaming")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, options{
		addr:     *addr,
		file:     *file,
		fps:      *fps,
		loop:     *loop,
		activate: *activate,
		fail:     *fail,
		tail:     *tail,
	}); err != nil && ctx.Err() == nil {
		log.Error("feed failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	addr     string
	file     string
	fps      float64
	loop     bool
	activate bool
	fail     string
	tail     bool
}

func run(ctx context.Context, opts options) error {
	if opts.tail {
		conn, err := dial(ctx, "ws://"+opts.addr+"/ws/signal")
		if err != nil {
			return err
		}
		defer conn.Close()
		return tailSignals(ctx, conn, os.Stdout)
	}

	conn, err := dial(ctx, "ws://"+opts.addr+"/ws/landmarks")
	if err != nil {
		return err
	}
	defer closeConn(conn)

	if opts.fail != "" {
		return reportFailure(conn, opts.fail)
	}

	if opts.file == "" {
		return fmt.Errorf("-file is required")
	}
	frames, err := landmark.LoadRecording(opts.file)
	if err != nil {
		return err
	}
	log.Info("streaming recording", "file", opts.file, "frames", len(frames), "fps", opts.fps)

	if opts.activate {
		go activateTracking(ctx, "http://"+opts.addr+"/api/tracking/activate")
	}

	sent, err := stream(ctx, conn, frames, opts.fps, opts.loop)
	log.Info("stream finished", "sent", sent)
	return err
}

// activateTracking asks the server to start tracking. The server waits for
// an attached detector, so this runs alongside the stream.
func activateTracking(ctx context.Context, url string) {
	var status struct {
		State     string `json:"state"`
		SessionID string `json:"session_id"`
	}
	if err := httpc.PostJSON(ctx, httpc.Client, url, &status); err != nil {
		log.Warn("activation rejected", "error", err)
		return
	}
	log.Info("tracking activated", "state", status.State, "session", status.SessionID)
}
