package usecase

import (
	"context"

	"github.com/RohanKP1/image-upload-service/internal/cluster"
	"github.com/RohanKP1/image-upload-service/pkg/e"
	"github.com/RohanKP1/image-upload-service/pkg/keymutex"
)

// Coordinator сериализует операции над состоянием кластеров одного
// пользователя. Эксклюзивная секция покрывает только цикл
// загрузка→вычисление→запись; внешние сетевые вызовы (embedding, именование)
// выполняются вне секции. Операции разных пользователей не блокируют друг друга.
type Coordinator struct {
	locks      *keymutex.KeyMutex
	transactor Transactor
	stateRepo  StateRepository
}

func NewCoordinator(transactor Transactor, stateRepo StateRepository) *Coordinator {
	return &Coordinator{
		locks:      keymutex.New(),
		transactor: transactor,
		stateRepo:  stateRepo,
	}
}

// WithUserState выполняет fn над актуальным состоянием пользователя под
// per-user блокировкой и записывает результат. Если fn возвращает ошибку,
// запись не выполняется и прежнее сохраненное состояние остается нетронутым —
// вычисленный результат отбрасывается целиком.
func (c *Coordinator) WithUserState(ctx context.Context, userID string, fn func(st *cluster.State) error) error {
	const op = "Coordinator.WithUserState"

	c.locks.Lock(userID)
	defer c.locks.Unlock(userID)

	err := c.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		st, err := c.stateRepo.LoadState(ctx, userID)
		if err != nil {
			return err
		}

		if err := fn(st); err != nil {
			return err
		}

		return c.stateRepo.SaveState(ctx, st)
	})
	if err != nil {
		return e.Wrap(op, err)
	}

	return nil
}
