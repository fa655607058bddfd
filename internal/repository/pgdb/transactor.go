package pgdb

import (
	"context"

	"github.com/RohanKP1/image-upload-service/pkg/e"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

// Transactor открывает транзакцию PostgreSQL и передает ее вниз через контекст.
// Репозитории достают транзакцию через tr.TxFromCtx.
type Transactor struct {
	dbPool transaction.Transactional
}

func NewTransactor(dbPool transaction.Transactional) *Transactor {
	return &Transactor{
		dbPool: dbPool,
	}
}

// WithinTransaction выполняет fn в рамках одной транзакции. При ошибке fn
// транзакция откатывается и ни одно из ее изменений не становится видимым.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, t.dbPool)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer func() {
		if tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
