package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/resolver"
	"github.com/agentation/agentation-server/pkg/storage"
)

func successfulDetection() models.ComponentDetection {
	return models.ComponentDetection{
		Success: true,
		CodeInfo: &models.CodeInfo{
			RelativePath:  "src/CheckoutButton.tsx",
			LineNumber:    42,
			ColumnNumber:  7,
			ComponentName: "CheckoutButton",
		},
		ComponentType:  "Pressable",
		FullPath:       "App > CheckoutScreen > CheckoutButton",
		NearbyElements: "CheckoutScreen, CartSummary, CheckoutButton",
		Bounds:         &models.BoundingBox{X: 20, Y: 470, Width: 280, Height: 48},
	}
}

func TestStore_CreateFromDetection_BuildsAnnotation(t *testing.T) {
	st := New(nil, "Checkout")

	a := st.CreateFromDetection(320, 480, "label truncated", successfulDetection())

	require.NotNil(t, a)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 320.0, a.X)
	assert.Equal(t, 480.0, a.Y)
	assert.Equal(t, "label truncated", a.Comment)
	assert.Equal(t, "CheckoutButton", a.Element)
	assert.Equal(t, "src/CheckoutButton.tsx:42", a.ElementPath)
	assert.Equal(t, "src/CheckoutButton.tsx", a.SourcePath)
	assert.Equal(t, 42, a.LineNumber)
	assert.False(t, a.Timestamp.IsZero())
	require.NotNil(t, a.BoundingBox)
	assert.Equal(t, 280.0, a.BoundingBox.Width)
	assert.Equal(t, 1, st.Len())
}

func TestStore_CreateFromDetection_FailedDetectionMutatesNothing(t *testing.T) {
	st := New(nil, "Checkout")

	a := st.CreateFromDetection(1, 2, "comment", models.ComponentDetection{Success: false})

	assert.Nil(t, a)
	assert.Equal(t, 0, st.Len())
}

func TestStore_CreateFromDetection_MissingCodeInfoMutatesNothing(t *testing.T) {
	st := New(nil, "Checkout")

	a := st.CreateFromDetection(1, 2, "comment", models.ComponentDetection{Success: true})

	assert.Nil(t, a)
	assert.Equal(t, 0, st.Len())
}

func TestStore_CreateFromDetection_PlaceholderStillCreates(t *testing.T) {
	st := New(nil, "Checkout")
	det := models.ComponentDetection{
		Success:           true,
		SourceUnavailable: true,
		CodeInfo:          &models.CodeInfo{ComponentName: resolver.PlaceholderName},
	}

	a := st.CreateFromDetection(1, 2, "comment", det)

	require.NotNil(t, a)
	assert.Equal(t, resolver.PlaceholderName, a.Element)
	assert.Empty(t, a.ElementPath, "no element path without a source path")
}

func TestStore_Create_FailedResolutionMutatesNothing(t *testing.T) {
	// A nil inspector resolves to success:false.
	st := New(resolver.New(nil), "Checkout")

	a := st.Create(context.Background(), 1, 2, nil, "comment")

	assert.Nil(t, a)
	assert.Equal(t, 0, st.Len())
}

func TestStore_CreateFromDetection_CapturesEnvironment(t *testing.T) {
	st := New(nil, "Checkout", WithEnvironment(func() Environment {
		return Environment{
			RouteName:        "Checkout",
			NavigationPath:   "Home > Cart > Checkout",
			Platform:         "ios",
			ScreenDimensions: &models.ScreenDimensions{Width: 390, Height: 844},
			PixelRatio:       3,
		}
	}))

	a := st.CreateFromDetection(1, 2, "comment", successfulDetection())

	require.NotNil(t, a)
	assert.Equal(t, "Checkout", a.RouteName)
	assert.Equal(t, "ios", a.Platform)
	require.NotNil(t, a.ScreenDimensions)
	assert.Equal(t, 390, a.ScreenDimensions.Width)
	assert.Equal(t, 3.0, a.PixelRatio)
}

func TestStore_GetByID_RoundTrip(t *testing.T) {
	st := New(nil, "Checkout")
	a := st.CreateFromDetection(1, 2, "comment", successfulDetection())
	require.NotNil(t, a)

	got := st.GetByID(a.ID)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "comment", got.Comment)

	assert.Nil(t, st.GetByID("missing"))
}

func TestStore_Update_ReplacesCommentAndTimestamp(t *testing.T) {
	st := New(nil, "Checkout")
	a := st.CreateFromDetection(1, 2, "first", successfulDetection())
	require.NotNil(t, a)

	st.Update(a.ID, "second")

	got := st.GetByID(a.ID)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Comment)
	assert.False(t, got.Timestamp.Before(a.Timestamp))
}

func TestStore_Update_UnknownIDIsNoOp(t *testing.T) {
	st := New(nil, "Checkout")
	st.CreateFromDetection(1, 2, "comment", successfulDetection())

	st.Update("missing", "new comment")

	assert.Equal(t, 1, st.Len())
}

func TestStore_Delete(t *testing.T) {
	st := New(nil, "Checkout")
	a := st.CreateFromDetection(1, 2, "comment", successfulDetection())
	require.NotNil(t, a)

	assert.True(t, st.Delete(a.ID))
	assert.Equal(t, 0, st.Len())
	assert.False(t, st.Delete(a.ID), "second delete finds nothing")
}

func TestStore_ClearAll_Idempotent(t *testing.T) {
	st := New(nil, "Checkout")
	st.CreateFromDetection(1, 2, "one", successfulDetection())
	st.CreateFromDetection(3, 4, "two", successfulDetection())

	st.ClearAll()
	assert.Equal(t, 0, st.Len())

	st.ClearAll()
	assert.Equal(t, 0, st.Len())
}

func TestStore_Snapshot_PreservesInsertionOrder(t *testing.T) {
	st := New(nil, "Checkout")
	first := st.CreateFromDetection(1, 100, "one", successfulDetection())
	second := st.CreateFromDetection(2, 50, "two", successfulDetection())
	require.NotNil(t, first)
	require.NotNil(t, second)

	snap := st.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, first.ID, snap[0].ID)
	assert.Equal(t, second.ID, snap[1].ID)
}

func TestStore_New_LoadsPersistedCollection(t *testing.T) {
	persist := storage.NewMemoryStore()
	saved := []models.Annotation{{ID: "persisted-1", Comment: "from disk", Element: "Header"}}
	data, err := json.Marshal(saved)
	require.NoError(t, err)
	require.NoError(t, persist.Save(context.Background(), "annotations.Checkout", data))

	st := New(nil, "Checkout",
		WithStorage(persist),
		WithInitial([]models.Annotation{{ID: "seed-1"}}))

	require.Equal(t, 1, st.Len())
	got := st.GetByID("persisted-1")
	require.NotNil(t, got, "persisted collection replaces the seed")
	assert.Equal(t, "from disk", got.Comment)
}

func TestStore_New_KeepsSeedWhenNothingPersisted(t *testing.T) {
	st := New(nil, "Checkout",
		WithStorage(storage.NewMemoryStore()),
		WithInitial([]models.Annotation{{ID: "seed-1"}}))

	assert.NotNil(t, st.GetByID("seed-1"))
}

func TestStore_MutationsPersist(t *testing.T) {
	persist := storage.NewMemoryStore()
	st := New(nil, "Checkout", WithStorage(persist))

	a := st.CreateFromDetection(1, 2, "comment", successfulDetection())
	require.NotNil(t, a)

	assert.Eventually(t, func() bool {
		data, err := persist.Load(context.Background(), "annotations.Checkout")
		if err != nil || data == nil {
			return false
		}
		var annotations []models.Annotation
		if err := json.Unmarshal(data, &annotations); err != nil {
			return false
		}
		return len(annotations) == 1 && annotations[0].ID == a.ID
	}, time.Second, 10*time.Millisecond)
}

// slowStorage delays every save so rapid mutations overlap in-flight writes.
type slowStorage struct {
	mu    sync.Mutex
	saves [][]byte
}

func (s *slowStorage) Load(ctx context.Context, key string) ([]byte, error) { return nil, nil }

func (s *slowStorage) Save(ctx context.Context, key string, data []byte) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, data)
	return nil
}

func (s *slowStorage) Delete(ctx context.Context, key string) error { return nil }

func (s *slowStorage) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil
	}
	return s.saves[len(s.saves)-1]
}

func TestStore_RapidMutationsPersistNewestSnapshotLast(t *testing.T) {
	persist := &slowStorage{}
	st := New(nil, "Checkout", WithStorage(persist))

	for i := 0; i < 5; i++ {
		require.NotNil(t, st.CreateFromDetection(float64(i), float64(i), "note", successfulDetection()))
	}
	deleted := st.Snapshot()[0]
	require.True(t, st.Delete(deleted.ID))

	want, err := json.Marshal(st.Snapshot())
	require.NoError(t, err)

	// Regardless of how the overlapping writes interleave, the final
	// persisted payload must be the final collection state.
	assert.Eventually(t, func() bool {
		return string(persist.last()) == string(want)
	}, 2*time.Second, 10*time.Millisecond)
}

type failingClipboard struct{}

func (failingClipboard) Write(string) error { return errors.New("clipboard unavailable") }

type recordingClipboard struct {
	content string
}

func (c *recordingClipboard) Write(text string) error {
	c.content = text
	return nil
}

func TestStore_CopyMarkdown_WritesClipboard(t *testing.T) {
	clip := &recordingClipboard{}
	st := New(nil, "Checkout", WithClipboard(clip, true))
	st.CreateFromDetection(1, 2, "comment", successfulDetection())

	rep := st.CopyMarkdown(models.LevelCompact)

	assert.Equal(t, 1, rep.Count)
	assert.Equal(t, rep.Content, clip.content)
}

func TestStore_CopyMarkdown_SkipsClipboardWhenDisabled(t *testing.T) {
	clip := &recordingClipboard{}
	st := New(nil, "Checkout", WithClipboard(clip, false))
	st.CreateFromDetection(1, 2, "comment", successfulDetection())

	rep := st.CopyMarkdown(models.LevelCompact)

	assert.Equal(t, 1, rep.Count)
	assert.Empty(t, clip.content)
}

func TestStore_CopyMarkdown_ClipboardFailureDoesNotPropagate(t *testing.T) {
	st := New(nil, "Checkout", WithClipboard(failingClipboard{}, true))
	st.CreateFromDetection(1, 2, "comment", successfulDetection())

	rep := st.CopyMarkdown(models.LevelStandard)

	assert.Equal(t, 1, rep.Count, "report generation survives a clipboard failure")
}
