package web

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-handflow/pkg/landmark"
)

// landmarkMessage is one message from a browser detector: either a
// detection result or a failure report.
type landmarkMessage struct {
	landmark.RawResult
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Failure codes a browser detector may report.
const (
	failurePermissionDenied    = "permission_denied"
	failureCameraUnavailable   = "camera_unavailable"
	failureDetectorUnavailable = "detector_unavailable"
)

func failureError(code, message string) error {
	var cause error
	switch code {
	case failurePermissionDenied:
		cause = landmark.ErrPermissionDenied
	case failureDetectorUnavailable:
		cause = landmark.ErrDetectorUnavailable
	default:
		cause = landmark.ErrCameraUnavailable
	}
	if message == "" {
		message = code
	}
	return &landmark.AcquisitionError{Reason: message, Err: cause}
}

// producerStats counts what one detector connection sent.
type producerStats struct {
	results   atomic.Uint64
	failures  atomic.Uint64
	malformed atomic.Uint64
}

// landmarkHandler returns the /ws/landmarks handler. A producer may name
// itself with ?id=; otherwise one is generated.
func (s *Server) landmarkHandler() fiber.Handler {
	return websocket.New(s.handleLandmarksWS)
}

// handleLandmarksWS ingests detector results from a browser
func (s *Server) handleLandmarksWS(c *websocket.Conn) {
	remote := s.opts.Remote
	if remote == nil {
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "remote source not configured"))
		return
	}

	id := c.Query("id")
	if id == "" {
		id = uuid.NewString()
	}
	logger := s.logger.With("producer", id)

	detach := remote.Attach()
	defer detach()
	logger.Info("detector attached", "producers", remote.Producers())

	var stats producerStats
	connected := time.Now()
	defer func() {
		logger.Info("detector detached",
			"duration", time.Since(connected).Round(time.Second),
			"results", stats.results.Load(),
			"failures", stats.failures.Load(),
			"malformed", stats.malformed.Load())
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("detector read error", "error", err)
			}
			return
		}
		s.handleLandmarkMessage(remote, &stats, data)
	}
}

func (s *Server) handleLandmarkMessage(remote *landmark.RemoteSource, stats *producerStats, data []byte) {
	var msg landmarkMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		if stats.malformed.Add(1) == 1 {
			s.logger.Warn("malformed landmark message", "error", err)
		}
		return
	}
	if msg.Error != "" {
		stats.failures.Add(1)
		err := failureError(msg.Error, msg.Message)
		s.logger.Warn("detector reported failure", "error", err)
		remote.Report(err)
		return
	}
	stats.results.Add(1)
	remote.Ingest(msg.RawResult)
}
