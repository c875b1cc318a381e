package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("레코드가 없습니다")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS buyer_ids (
		buyer_id    TEXT PRIMARY KEY,
		create_time INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		source        TEXT NOT NULL UNIQUE,
		status        TEXT NOT NULL DEFAULT 'pending',
		attempts      INTEGER NOT NULL DEFAULT 0,
		entry_count   INTEGER NOT NULL DEFAULT 0,
		buyer_count   INTEGER NOT NULL DEFAULT 0,
		total_amount  INTEGER NOT NULL DEFAULT 0,
		output_path   TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		create_time   INTEGER NOT NULL,
		update_time   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_status ON runs (status)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id      INTEGER NOT NULL,
		chat_id         INTEGER NOT NULL,
		sender_id       INTEGER NOT NULL,
		sender_name     TEXT NOT NULL,
		sender_username TEXT,
		text            TEXT NOT NULL,
		sent_at         INTEGER NOT NULL,
		UNIQUE (chat_id, message_id)
	)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_sent_at ON messages (chat_id, sent_at)`,
}

// DSN sqlite 파일 연결 문자열
func DSN(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_fk=1", path)
}

// Open 데이터베이스를 열고 테이블을 만든다
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("데이터 디렉터리 생성 실패: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate 테이블이 없으면 만든다
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("스키마 생성 실패: %w", err)
		}
	}
	return nil
}
