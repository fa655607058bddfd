package pgdb

import (
	"context"
	"testing"

	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTx подменяет pgx.Tx и записывает отправленные батчи вместо
// обращения к базе.
type recordingTx struct {
	pgx.Tx
	batches []*pgx.Batch
}

func (r *recordingTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	r.batches = append(r.batches, b)
	return &recordedResults{}
}

type recordedResults struct{}

func (recordedResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (recordedResults) Query() (pgx.Rows, error)         { return nil, nil }
func (recordedResults) QueryRow() pgx.Row                { return nil }
func (*recordedResults) Close() error                    { return nil }

func ctxWithRecordingTx(tx *recordingTx) context.Context {
	return context.WithValue(context.Background(), "tx", pgx.Tx(tx))
}

func saveTestState(t *testing.T, imageIDs ...string) (*recordingTx, []*pgx.QueuedQuery) {
	t.Helper()

	st := cluster.NewState("user-1")
	for _, id := range imageIDs {
		require.NoError(t, st.AddImage(domain.NewImage("user-1", id, id+".jpg", "image/jpeg")))
	}

	tx := &recordingTx{}
	require.NoError(t, NewClusterStateRepo(nil).SaveState(ctxWithRecordingTx(tx), st))

	require.Len(t, tx.batches, 1)
	return tx, tx.batches[0].QueuedQueries
}

func TestSaveState_PrunesRowsMissingFromState(t *testing.T) {
	_, queries := saveTestState(t, "img-1")

	// DELETE отсутствующих строк, UPDATE cluster_id, DELETE clusters, upsert изображения
	require.Len(t, queries, 4)

	assert.Contains(t, queries[0].SQL, "DELETE FROM images")
	assert.Contains(t, queries[0].SQL, "!= ALL($2)")
	require.Len(t, queries[0].Arguments, 2)
	assert.Equal(t, "user-1", queries[0].Arguments[0])
	// Удаленное ранее изображение не попадает в список сохраняемых —
	// его строка будет удалена этим выражением
	assert.Equal(t, []string{"img-1"}, queries[0].Arguments[1])

	assert.Contains(t, queries[1].SQL, "SET cluster_id = NULL")
	assert.Contains(t, queries[2].SQL, "DELETE FROM clusters")
	assert.Contains(t, queries[3].SQL, "INSERT INTO images")
}

func TestSaveState_EmptyStateClearsAllRows(t *testing.T) {
	_, queries := saveTestState(t)

	require.Len(t, queries, 3)
	assert.Contains(t, queries[0].SQL, "DELETE FROM images")
	assert.Equal(t, []string{}, queries[0].Arguments[1])
}

func TestSaveState_RequiresTransaction(t *testing.T) {
	st := cluster.NewState("user-1")

	err := NewClusterStateRepo(nil).SaveState(context.Background(), st)
	assert.ErrorIs(t, err, e.ErrTransactionNotFound)
}
