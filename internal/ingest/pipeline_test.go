package ingest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpcatalog/cpcatalog/internal/bloom"
	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
)

const (
	validID1 = "1101tc200401330150201102030"
	validID2 = "1201cp200502110150302152535"
	validID3 = "3101it200603440150301050505"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *catalog.SQLiteStore) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "ingest_test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := catalog.NewStore(tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, bloom.NewWithEstimates(10000, 0.01), opts...), store
}

func TestRegisterIdentifiers_PartialSuccess(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.RegisterIdentifiers(ctx, []string{validID1, "malformed", validID2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.OK())

	// Outcomes are attributable to their originating strings, in order.
	require.Len(t, result.Items, 3)
	assert.Equal(t, StatusCreated, result.Items[0].Status)
	assert.Equal(t, StatusFailed, result.Items[1].Status)
	assert.Equal(t, "malformed", result.Items[1].Identifier)
	assert.Equal(t, cperrors.CodeInvalidIdentifier, cperrors.GetCode(result.Items[1].Err))
	assert.Equal(t, StatusCreated, result.Items[2].Status)

	// The valid identifiers landed despite the malformed sibling.
	for _, id := range []string{validID1, validID2} {
		if _, err := store.GetIdentifier(ctx, id); err != nil {
			t.Errorf("identifier %s not stored: %v", id, err)
		}
	}
}

func TestRegisterIdentifiers_Idempotent(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.RegisterIdentifiers(ctx, []string{validID1})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := p.RegisterIdentifiers(ctx, []string{validID1})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Existing)
	assert.True(t, second.OK())
	assert.Equal(t, StatusExists, second.Items[0].Status)
}

func TestRegisterIdentifiers_InputDeduplicated(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.RegisterIdentifiers(ctx, []string{validID1, validID1, validID1})
	require.NoError(t, err)

	// Caller-supplied duplicates collapse to a single item.
	require.Len(t, result.Items, 1)
	assert.Equal(t, 1, result.Created)
}

func TestRegisterIdentifiers_EmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.RegisterIdentifiers(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, cperrors.CodeEmptyBatch, cperrors.GetCode(err))
}

func TestRegisterIdentifiers_Chunking(t *testing.T) {
	p, store := newTestPipeline(t, WithBatchSize(2))
	ctx := context.Background()

	// Five distinct valid identifiers force three chunks.
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = fmt.Sprintf("1101tc%04d01330150201102030", 2001+i)
	}

	result, err := p.RegisterIdentifiers(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)

	for i, id := range ids {
		rec, err := store.GetIdentifier(ctx, id)
		require.NoError(t, err, "identifier %d missing", i)
		assert.Equal(t, 2001+i, rec.Organization)
	}
}

func TestRegisterIdentifiers_ConcurrentDuplicate(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	const callers = 8
	results := make([]*Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.RegisterIdentifiers(ctx, []string{validID1})
		}(i)
	}
	wg.Wait()

	totalCreated := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d surfaced an error", i)
		assert.True(t, results[i].OK(), "caller %d reported a failure", i)
		totalCreated += results[i].Created
	}
	assert.Equal(t, 1, totalCreated, "exactly one caller creates the row")
}

func TestRegisterDetails_UnresolvedReference(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.RegisterDetails(ctx, []DetailInput{
		{Identifier: "never-registered", GPUModel: "A100", Price: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, StatusFailed, result.Items[0].Status)
	assert.Equal(t, cperrors.CodeUnresolvedReference, cperrors.GetCode(result.Items[0].Err))

	n, err := store.CountDetails(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "store must gain zero detail rows")
}

func TestRegisterDetails_MixedBatch(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.RegisterIdentifiers(ctx, []string{validID1})
	require.NoError(t, err)

	result, err := p.RegisterDetails(ctx, []DetailInput{
		{Identifier: validID1, GPUModel: "A100", Price: 1200},
		{Identifier: "missing", GPUModel: "H100", Price: 2400},
		{Identifier: validID1, GPUModel: "L40", Price: 800},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, StatusCreated, result.Items[0].Status)
	assert.Equal(t, StatusFailed, result.Items[1].Status)
	assert.Equal(t, StatusCreated, result.Items[2].Status)

	n, err := store.CountDetails(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRegisterDetails_EmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.RegisterDetails(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, cperrors.CodeEmptyBatch, cperrors.GetCode(err))
}

// failingStore simulates an unreachable persistence layer for the calls the
// identifier path makes.
type failingStore struct {
	catalog.Store
}

func (f *failingStore) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func (f *failingStore) InsertIdentifiers(ctx context.Context, records []*catalog.IdentifierRecord) ([]bool, error) {
	return nil, fmt.Errorf("connection refused")
}

func TestRegisterIdentifiers_StoreUnavailable(t *testing.T) {
	p := New(&failingStore{}, nil)

	_, err := p.RegisterIdentifiers(context.Background(), []string{validID1})
	require.Error(t, err)
	assert.Equal(t, cperrors.CodeStoreUnavailable, cperrors.GetCode(err))
	assert.True(t, cperrors.IsRetryable(err))
}
