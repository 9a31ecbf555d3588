package chromem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RuokeZhang/IntelliFlow/vector"
	"github.com/RuokeZhang/IntelliFlow/vector/chromem"
)

func TestQuery_OrdersBySimilarityDescending(t *testing.T) {
	ctx := context.Background()
	s := chromem.New()

	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "far", []float32{0, 1}, "far doc", nil))
	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "near", []float32{1, 0}, "near doc", nil))
	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "mid", []float32{0.6, 0.8}, "mid doc", nil))

	res, err := s.Query(ctx, vector.CollectionChunks, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.Equal(t, "near", res[0].ID)
	require.Equal(t, "mid", res[1].ID)
	require.Equal(t, "far", res[2].ID)
	require.Greater(t, res[0].Similarity, res[1].Similarity)
}

func TestQuery_ClampsTopNToCollectionSize(t *testing.T) {
	ctx := context.Background()
	s := chromem.New()

	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "only", []float32{1, 0}, "doc", nil))

	res, err := s.Query(ctx, vector.CollectionChunks, []float32{1, 0}, 20, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
}

func TestQuery_EmptyCollection(t *testing.T) {
	res, err := chromem.New().Query(context.Background(), vector.CollectionSummaries, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestQuery_MetadataFilter(t *testing.T) {
	ctx := context.Background()
	s := chromem.New()

	require.NoError(t, s.Upsert(ctx, vector.CollectionSummaries, "a", []float32{1, 0}, "session a summary",
		map[string]string{"session_id": "a"}))
	require.NoError(t, s.Upsert(ctx, vector.CollectionSummaries, "b", []float32{1, 0}, "session b summary",
		map[string]string{"session_id": "b"}))

	res, err := s.Query(ctx, vector.CollectionSummaries, []float32{1, 0}, 2,
		map[string]string{"session_id": "a"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "a", res[0].ID)
	require.Equal(t, "a", res[0].Metadata["session_id"])
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	s := chromem.New()

	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "doc", []float32{1, 0}, "v1", nil))
	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "doc", []float32{1, 0}, "v2", nil))

	res, err := s.Query(ctx, vector.CollectionChunks, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "v2", res[0].Content)
}

func TestPersistentStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := chromem.NewPersistent(dir)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, vector.CollectionChunks, "doc", []float32{1, 0}, "persisted", nil))

	reopened, err := chromem.NewPersistent(dir)
	require.NoError(t, err)
	res, err := reopened.Query(ctx, vector.CollectionChunks, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "persisted", res[0].Content)
}
