package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-handflow/pkg/landmark"
)

var upgrader = websocket.Upgrader{}

// echoServer collects every message a client sends
func echoServer(t *testing.T, received chan<- []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_SendsEveryFrameOnce(t *testing.T) {
	received := make(chan []byte, 16)
	url := echoServer(t, received)

	conn, err := dial(context.Background(), url)
	require.NoError(t, err)
	defer closeConn(conn)

	frames := []landmark.RawResult{
		{MultiHandLandmarks: [][]landmark.RawPoint{{{X: 0.1, Y: 0.2}}}},
		{},
		{MultiHandLandmarks: [][]landmark.RawPoint{{{X: 0.3, Y: 0.4}}}},
	}
	sent, err := stream(context.Background(), conn, frames, 500, false)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	for i, want := range frames {
		select {
		case data := <-received:
			var got landmark.RawResult
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, want, got, "frame %d", i)
		case <-time.After(time.Second):
			t.Fatalf("frame %d not received", i)
		}
	}
}

func TestStream_LoopStopsOnCancel(t *testing.T) {
	received := make(chan []byte, 1024)
	url := echoServer(t, received)

	conn, err := dial(context.Background(), url)
	require.NoError(t, err)
	defer closeConn(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sent, err := stream(ctx, conn, []landmark.RawResult{{}}, 1000, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, sent, 1)
}

func TestStream_EmptyRecording(t *testing.T) {
	_, err := stream(context.Background(), nil, nil, 30, false)
	assert.Error(t, err)
}

func TestReportFailure(t *testing.T) {
	received := make(chan []byte, 1)
	url := echoServer(t, received)

	conn, err := dial(context.Background(), url)
	require.NoError(t, err)
	defer closeConn(conn)

	require.NoError(t, reportFailure(conn, "permission_denied"))
	select {
	case data := <-received:
		assert.JSONEq(t, `{"error":"permission_denied","message":"reported by feed"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("failure report not received")
	}
}

func TestTailSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"frame","data":{"seq":7,"hand":{"detected":true,"palm_y":0.9},"proximity":0.8,"scroll":{"current":-12}}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"scroll","dy":-12}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	conn, err := dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, tailSignals(context.Background(), conn, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "frame      7")
	assert.Contains(t, lines[0], "hand=true")
	assert.Contains(t, lines[0], "vel=-12.00")
	assert.Equal(t, "scroll dy=-12.00", lines[1])
}

func TestDial_Failure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
