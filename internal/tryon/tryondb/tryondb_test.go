package tryondb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastravista/tryon/internal/tryon"
)

func openTestDB(t *testing.T) *TryonDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tryon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(session string, nanos int64, frozen bool) tryon.FrameRecord {
	return tryon.FrameRecord{
		SessionID:    session,
		UnixNanos:    nanos,
		Garment:      tryon.GarmentTShirt,
		Confidence:   0.87,
		Usable:       !frozen,
		Frozen:       frozen,
		LatencyNanos: 4_200_000,
	}
}

func TestOpenMigratesSchema(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tryon_frames'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Reopening an already-migrated database is a no-op.
	db2, err := Open(filepath.Join(t.TempDir(), "again.db"))
	require.NoError(t, err)
	db2.Close()
}

func TestInsertAndQueryFrames(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	id, err := db.InsertFrame(sampleRecord("sess-1", 1000, false))
	require.NoError(t, err)
	assert.Positive(t, id)

	require.NoError(t, db.InsertFrames([]tryon.FrameRecord{
		sampleRecord("sess-1", 2000, true),
		sampleRecord("sess-1", 3000, false),
		sampleRecord("sess-2", 1500, false),
	}))

	t.Run("recent frames newest first", func(t *testing.T) {
		frames, err := db.RecentFrames("sess-1", 10)
		require.NoError(t, err)
		require.Len(t, frames, 3)
		assert.Equal(t, int64(3000), frames[0].UnixNanos)
		assert.Equal(t, int64(1000), frames[2].UnixNanos)
		assert.True(t, frames[1].Frozen)
		assert.Equal(t, tryon.GarmentTShirt, frames[0].Garment)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		frames, err := db.RecentFrames("sess-1", 2)
		require.NoError(t, err)
		assert.Len(t, frames, 2)
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		frames, err := db.RecentFrames("nope", 10)
		require.NoError(t, err)
		assert.Empty(t, frames)
	})

	t.Run("summaries aggregate per session", func(t *testing.T) {
		summaries, err := db.SessionSummaries()
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		// Newest activity first: sess-1 last wrote at 3000.
		assert.Equal(t, "sess-1", summaries[0].SessionID)
		assert.Equal(t, int64(3), summaries[0].Frames)
		assert.Equal(t, int64(1), summaries[0].FrozenFrames)
		assert.Equal(t, int64(1000), summaries[0].FirstUnixNanos)
		assert.Equal(t, int64(3000), summaries[0].LastUnixNanos)
		assert.InDelta(t, 0.87, summaries[0].MeanConfidence, 1e-9)
	})
}

func TestInsertFramesEmptyBatch(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	assert.NoError(t, db.InsertFrames(nil))
}
