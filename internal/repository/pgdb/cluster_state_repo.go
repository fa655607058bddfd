package pgdb

import (
	"context"

	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/internal/repository/pgdb/converter"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// querier покрывает общие методы pgx.Tx и pgxpool.Pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ClusterStateRepo реализует хранение состояния кластеров поверх PostgreSQL.
// Состояние пользователя раскладывается по таблицам images и clusters;
// состав кластеров восстанавливается по колонке images.cluster_id.
type ClusterStateRepo struct {
	pool        *pgxpool.Pool
	imageConv   converter.ImageConverter
	clusterConv converter.ClusterConverter
}

func NewClusterStateRepo(pool *pgxpool.Pool) *ClusterStateRepo {
	return &ClusterStateRepo{
		pool:        pool,
		imageConv:   converter.NewImageConverter(),
		clusterConv: converter.NewClusterConverter(),
	}
}

// querier возвращает транзакцию из контекста, если она открыта, иначе пул.
func (r *ClusterStateRepo) querier(ctx context.Context) querier {
	if tx, err := tr.TxFromCtx(ctx); err == nil {
		return tx
	}
	return r.pool
}

// LoadState возвращает текущее состояние пользователя.
// Если записей нет, возвращается пустое состояние.
func (r *ClusterStateRepo) LoadState(ctx context.Context, userID string) (*cluster.State, error) {
	q := r.querier(ctx)
	st := cluster.NewState(userID)

	clustersQuery := `
		SELECT user_id, cluster_id, name, centroid, cohesion_mean, cohesion_stddev, created_at
		FROM clusters
		WHERE user_id = $1
	`

	rows, err := q.Query(ctx, clustersQuery, userID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var model converter.ClusterModel
		err := rows.Scan(
			&model.UserID, &model.ID, &model.Name, &model.Centroid,
			&model.CohesionMean, &model.CohesionStdDev, &model.CreatedAt,
		)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		c := r.clusterConv.ToEntity(&model)
		st.Clusters[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	rows.Close()

	imagesQuery := `
		SELECT user_id, image_id, filename, content_type, original_key, thumbnail_key,
		       description, embedding, cluster_id, uploaded_at
		FROM images
		WHERE user_id = $1
	`

	rows, err = q.Query(ctx, imagesQuery, userID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var model converter.ImageModel
		err := rows.Scan(
			&model.UserID, &model.ID, &model.Filename, &model.ContentType,
			&model.OriginalKey, &model.ThumbnailKey, &model.Description,
			&model.Embedding, &model.ClusterID, &model.UploadedAt,
		)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		img := r.imageConv.ToEntity(&model)
		st.Images[img.ID] = img

		if img.ClusterID != nil {
			if c, ok := st.Clusters[*img.ClusterID]; ok {
				c.Members[img.ID] = struct{}{}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return st, nil
}

// SaveState записывает состояние пользователя целиком. Запись выполняется
// только внутри открытой транзакции: изображения вне состояния удаляются,
// кластеры пересоздаются, остальные изображения обновляются по ключу
// (user_id, image_id).
func (r *ClusterStateRepo) SaveState(ctx context.Context, st *cluster.State) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	keep := make([]string, 0, len(st.Images))
	for _, img := range st.ImageList() {
		keep = append(keep, img.ID)
	}

	batch := &pgx.Batch{}
	// Строки изображений, которых больше нет в состоянии, удаляются:
	// состояние — единственный источник истины о составе пользователя.
	batch.Queue(`DELETE FROM images WHERE user_id = $1 AND image_id != ALL($2)`, st.UserID, keep)
	batch.Queue(`UPDATE images SET cluster_id = NULL WHERE user_id = $1`, st.UserID)
	batch.Queue(`DELETE FROM clusters WHERE user_id = $1`, st.UserID)

	insertCluster := `
		INSERT INTO clusters (user_id, cluster_id, name, centroid, cohesion_mean, cohesion_stddev, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, c := range st.ClusterList() {
		model := r.clusterConv.ToModel(c)
		batch.Queue(insertCluster,
			model.UserID, model.ID, model.Name, model.Centroid,
			model.CohesionMean, model.CohesionStdDev, model.CreatedAt,
		)
	}

	upsertImage := `
		INSERT INTO images (user_id, image_id, filename, content_type, original_key, thumbnail_key,
		                    description, embedding, cluster_id, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, image_id)
		DO UPDATE SET
			description = EXCLUDED.description,
			embedding = EXCLUDED.embedding,
			cluster_id = EXCLUDED.cluster_id
	`
	for _, img := range st.ImageList() {
		model := r.imageConv.ToModel(img)
		batch.Queue(upsertImage,
			model.UserID, model.ID, model.Filename, model.ContentType,
			model.OriginalKey, model.ThumbnailKey, model.Description,
			model.Embedding, model.ClusterID, model.UploadedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// UpdateClusterNames проставляет имена кластерам пользователя.
// Имена для несуществующих кластеров молча пропускаются.
func (r *ClusterStateRepo) UpdateClusterNames(ctx context.Context, userID string, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for clusterID, name := range names {
		batch.Queue(
			`UPDATE clusters SET name = $3 WHERE user_id = $1 AND cluster_id = $2`,
			userID, clusterID, name,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}
