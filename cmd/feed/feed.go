package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-handflow/pkg/landmark"
)

func dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func closeConn(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}

// stream sends frames at a fixed rate until they run out, or until ctx is
// done when looping. It returns how many frames were sent.
func stream(ctx context.Context, conn *websocket.Conn, frames []landmark.RawResult, fps float64, loop bool) (int, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("empty recording")
	}
	if fps <= 0 {
		fps = 30
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	sent := 0
	for i := 0; ; {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}

		if err := conn.WriteJSON(frames[i]); err != nil {
			return sent, fmt.Errorf("send frame %d: %w", i, err)
		}
		sent++

		i++
		if i == len(frames) {
			if !loop {
				return sent, nil
			}
			i = 0
		}
	}
}

// reportFailure tells the server the detector could not start.
func reportFailure(conn *websocket.Conn, code string) error {
	msg := map[string]string{
		"error":   code,
		"message": "reported by feed",
	}
	return conn.WriteJSON(msg)
}

// signalMessage is the envelope the server broadcasts on /ws/signal.
type signalMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	DY   float64         `json:"dy"`
}

type frameSummary struct {
	Seq  uint64 `json:"seq"`
	Hand struct {
		Detected bool    `json:"detected"`
		PalmY    float64 `json:"palm_y"`
	} `json:"hand"`
	Rotation struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"rotation"`
	Proximity float64 `json:"proximity"`
	Scroll    struct {
		Current float64 `json:"current"`
	} `json:"scroll"`
}

// tailSignals prints one line per message until the connection closes or
// ctx is done.
func tailSignals(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		fmt.Fprintln(out, formatSignal(msg))
	}
}

func formatSignal(msg signalMessage) string {
	switch msg.Type {
	case "frame":
		var f frameSummary
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			return "frame: " + err.Error()
		}
		return fmt.Sprintf("frame %6d hand=%-5t palm_y=%.3f rot=(%+.3f, %+.3f) prox=%.2f vel=%+.2f",
			f.Seq, f.Hand.Detected, f.Hand.PalmY, f.Rotation.X, f.Rotation.Y, f.Proximity, f.Scroll.Current)
	case "scroll":
		return fmt.Sprintf("scroll dy=%+.2f", msg.DY)
	default:
		return fmt.Sprintf("%s %s", msg.Type, msg.Data)
	}
}
