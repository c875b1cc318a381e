package model

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// BuyerIDModel 수동으로 등록한 구매자 ID 목록
type BuyerIDModel struct {
	db *sql.DB
}

func NewBuyerIDModel(db *sql.DB) *BuyerIDModel {
	return &BuyerIDModel{db: db}
}

// List 저장된 구매자 ID (정렬됨)
func (m *BuyerIDModel) List(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT buyer_id FROM buyer_ids ORDER BY buyer_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add 구매자 ID를 추가한다. 새로 추가된 개수를 돌려준다.
func (m *BuyerIDModel) Add(ctx context.Context, ids ...string) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	added, err := insertBuyerIDs(ctx, tx, ids)
	if err != nil {
		return 0, err
	}
	return added, tx.Commit()
}

// Remove 구매자 ID를 삭제한다. 삭제된 개수를 돌려준다.
func (m *BuyerIDModel) Remove(ctx context.Context, ids ...string) (int, error) {
	removed := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		res, err := m.db.ExecContext(ctx, `DELETE FROM buyer_ids WHERE buyer_id = ?`, id)
		if err != nil {
			return removed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

// Replace 목록 전체를 교체한다
func (m *BuyerIDModel) Replace(ctx context.Context, ids []string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM buyer_ids`); err != nil {
		return err
	}
	if _, err := insertBuyerIDs(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit()
}

func insertBuyerIDs(ctx context.Context, tx *sql.Tx, ids []string) (int, error) {
	now := time.Now().Unix()
	added := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO buyer_ids (buyer_id, create_time) VALUES (?, ?)`, id, now)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		added += int(n)
	}
	return added, nil
}
