package minio

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RohanKP1/image-upload-service/internal/cfg"
	"github.com/RohanKP1/image-upload-service/internal/domain"
	"github.com/RohanKP1/image-upload-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubObjectRepo struct {
	deletes   atomic.Int32
	deleteErr error
}

func (s *stubObjectRepo) Upload(context.Context, *domain.Object) (string, error) { return "", nil }

func (s *stubObjectRepo) Delete(context.Context, string) error {
	s.deletes.Add(1)
	return s.deleteErr
}

func (s *stubObjectRepo) PresignGet(context.Context, string) (string, error) { return "", nil }

func waitForCleanup(t *testing.T, m *MinioInfrastructure) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.WaitForCleanup(ctx))
}

func TestCleanupObjects_DeletesKeys(t *testing.T) {
	repo := &stubObjectRepo{}
	infra := NewMinioInfrastructure(repo, &cfg.MinIOCfg{}, logger.Nop{}, context.Background())

	infra.CleanupObjects([]string{"user-1/original/a.jpg", "user-1/thumbnail/a.jpg"})
	waitForCleanup(t, infra)

	assert.Equal(t, int32(2), repo.deletes.Load())
}

func TestCleanupObjects_StopsOnShutdown(t *testing.T) {
	repo := &stubObjectRepo{deleteErr: fmt.Errorf("minio unavailable")}

	ctx, cancel := context.WithCancel(context.Background())
	infra := NewMinioInfrastructure(repo, &cfg.MinIOCfg{}, logger.Nop{}, ctx)
	cancel()

	infra.CleanupObjects([]string{"user-1/original/a.jpg"})

	// Воркер выходит по отмене контекста, не выжидая повторы с backoff
	waitForCleanup(t, infra)
	assert.Equal(t, int32(1), repo.deletes.Load())
}
