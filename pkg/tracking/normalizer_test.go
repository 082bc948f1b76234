package tracking

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-handflow/pkg/landmark"
	"gonum.org/v1/gonum/spatial/r3"
)

// handAt builds a detected sample whose wrist and middle finger base sit at
// the given points.
func handAt(wrist, middle r3.Vec) landmark.Sample {
	points := make([]r3.Vec, landmark.HandLandmarks)
	for i := range points {
		points[i] = wrist
	}
	points[landmark.MiddleFingerMCP] = middle
	return landmark.FromPoints(points)
}

// palmAt builds a sample whose palm anchor is exactly (x, y, z).
func palmAt(x, y, z float64) landmark.Sample {
	p := r3.Vec{X: x, Y: y, Z: z}
	return handAt(p, p)
}

func TestPalmAnchor(t *testing.T) {
	got := PalmAnchor(r3.Vec{X: 0.2, Y: 0.8, Z: -0.1}, r3.Vec{X: 0.4, Y: 0.6, Z: -0.3})
	assert.InDelta(t, 0.3, got.X, 1e-12)
	assert.InDelta(t, 0.7, got.Y, 1e-12)
	assert.InDelta(t, -0.2, got.Z, 1e-12)
}

func TestNormalizer_MirrorsAndInverts(t *testing.T) {
	store := NewStore()
	n := NewNormalizer(store)
	n.now = func() time.Time { return time.Unix(100, 0) }

	hs := n.Apply(handAt(r3.Vec{X: 0.2, Y: 0.8, Z: -0.1}, r3.Vec{X: 0.4, Y: 0.6, Z: -0.3}))

	want := HandState{X: 0.7, Y: 0.7, Z: -0.2, PalmY: 0.3, Detected: true, Seq: 1, Updated: time.Unix(100, 0)}
	if diff := cmp.Diff(want, hs, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, hs, store.Load(), "published snapshot should match return value")
}

func TestNormalizer_RaisedPalmIncreasesPalmY(t *testing.T) {
	n := NewNormalizer(NewStore())

	low := n.Apply(palmAt(0.5, 0.9, 0)) // near bottom of frame
	high := n.Apply(palmAt(0.5, 0.1, 0))

	assert.Greater(t, high.PalmY, low.PalmY)
}

func TestNormalizer_SubjectRightMapsScreenRight(t *testing.T) {
	n := NewNormalizer(NewStore())

	// The subject's right hand appears on the left of an unmirrored camera frame
	hs := n.Apply(palmAt(0.1, 0.5, 0))
	assert.InDelta(t, 0.9, hs.X, 1e-12)
}

func TestNormalizer_StaleValuesRetained(t *testing.T) {
	store := NewStore()
	n := NewNormalizer(store)

	detected := n.Apply(palmAt(0.25, 0.75, -0.4))
	require.True(t, detected.Detected)

	for i := 0; i < 5; i++ {
		lost := n.Apply(landmark.None())
		assert.False(t, lost.Detected)
		assert.Equal(t, detected.X, lost.X)
		assert.Equal(t, detected.Y, lost.Y)
		assert.Equal(t, detected.Z, lost.Z)
		assert.Equal(t, detected.PalmY, lost.PalmY)
	}

	again := n.Apply(palmAt(0.5, 0.5, 0))
	assert.True(t, again.Detected)
	assert.InDelta(t, 0.5, again.X, 1e-12)
}

func TestNormalizer_InitialStateBeforeAnySample(t *testing.T) {
	store := NewStore()
	n := NewNormalizer(store)

	hs := n.Apply(landmark.None())
	assert.False(t, hs.Detected)
	assert.Equal(t, 0.5, hs.X)
	assert.Equal(t, 0.5, hs.PalmY)
	assert.Equal(t, uint64(1), hs.Seq)
}

func TestNormalizer_ClampsOutOfFrame(t *testing.T) {
	n := NewNormalizer(NewStore())

	hs := n.Apply(palmAt(-0.2, 1.3, -1.7))
	assert.Equal(t, 1.0, hs.X)
	assert.Equal(t, 1.0, hs.Y)
	assert.Equal(t, -1.0, hs.Z)
	assert.Equal(t, 0.0, hs.PalmY)
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	store := NewStore()
	n := NewNormalizer(store)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				hs := store.Load()
				// Writer keeps X+PalmY == 1 by writing x == 1-y
				if hs.Detected && abs(hs.X+hs.PalmY-1) > 1e-9 {
					t.Errorf("torn snapshot: %+v", hs)
					return
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		v := float64(i%100) / 100
		n.Apply(palmAt(1-v, v, 0))
	}
	close(stop)
	wg.Wait()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
