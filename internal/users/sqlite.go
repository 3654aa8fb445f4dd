package users

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS usuarios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		subject TEXT NOT NULL
	)`,
	insertSeed: `INSERT INTO usuarios (username, password_hash, role, subject)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO NOTHING`,
	selectUser: `SELECT username, password_hash, role, subject FROM usuarios WHERE username = ? LIMIT 1`,
}

// OpenSQLite はファイルベースの利用者ストアを開きます。
// 親ディレクトリが存在しない場合は作成します。テーブルの初期化は Bootstrap か最初の検索で行われます。
func OpenSQLite(ctx context.Context, path string, seed Seed) (*SQLStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return nil, fmt.Errorf("unable to create directory %v for the database, cause %w", dir, err)
	}

	// BEGIN IMMEDIATE と busy_timeout で同時初期化を待ち合わせる
	connstr := fmt.Sprintf("file:%v?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping %v, cause %w", path, err)
	}

	logOpen(ctx, sqliteDialect.name, path)
	return newSQLStore(db, sqliteDialect, seed), nil
}
