package users

import (
	"context"
	"database/sql"
)

// execer は *sql.DB と *sql.Tx の共通部分です。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx はトランザクション内で fn を実行し、成功時はコミット、
// エラーまたは panic の場合はロールバックします。
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx execer) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
