package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Run 입력 하나(파일 또는 캡처된 채팅 구간)에 대한 처리 기록
type Run struct {
	ID           string
	Source       string
	Status       RunStatus
	Attempts     int
	EntryCount   int
	BuyerCount   int
	TotalAmount  int
	OutputPath   string
	ErrorMessage string
	CreateTime   time.Time
	UpdateTime   time.Time
}

// RunStats 완료된 처리의 요약
type RunStats struct {
	EntryCount  int
	BuyerCount  int
	TotalAmount int
	OutputPath  string
}

type RunModel struct {
	db  *sql.DB
	now func() time.Time
}

func NewRunModel(db *sql.DB) *RunModel {
	return &RunModel{db: db, now: time.Now}
}

const runColumns = `id, source, status, attempts, entry_count, buyer_count, total_amount,
	output_path, error_message, create_time, update_time`

// GetBySource 입력 키로 조회. 없으면 ErrNotFound.
func (m *RunModel) GetBySource(ctx context.Context, source string) (*Run, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE source = ?`, source)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// GetOrCreate 입력 키로 조회하고 없으면 pending 상태로 만든다
func (m *RunModel) GetOrCreate(ctx context.Context, source string) (*Run, error) {
	existing, err := m.GetBySource(ctx, source)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := m.now().Unix()
	_, err = m.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, source, status, create_time, update_time) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), source, RunStatusPending, now, now)
	if err != nil {
		return nil, err
	}
	return m.GetBySource(ctx, source)
}

// MarkInProgress 처리 시작. 시도 횟수를 늘린다.
func (m *RunModel) MarkInProgress(ctx context.Context, id string) error {
	return m.update(ctx, id,
		`UPDATE runs SET status = ?, attempts = attempts + 1, update_time = ? WHERE id = ?`,
		RunStatusInProgress, m.now().Unix(), id)
}

// MarkCompleted 처리 완료
func (m *RunModel) MarkCompleted(ctx context.Context, id string, stats RunStats) error {
	return m.update(ctx, id,
		`UPDATE runs SET status = ?, entry_count = ?, buyer_count = ?, total_amount = ?,
			output_path = ?, error_message = '', update_time = ? WHERE id = ?`,
		RunStatusCompleted, stats.EntryCount, stats.BuyerCount, stats.TotalAmount,
		stats.OutputPath, m.now().Unix(), id)
}

// MarkFailed 처리 실패
func (m *RunModel) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	return m.update(ctx, id,
		`UPDATE runs SET status = ?, error_message = ?, update_time = ? WHERE id = ?`,
		RunStatusFailed, errorMsg, m.now().Unix(), id)
}

// GetIncomplete 완료되지 않은 처리 (pending 또는 in_progress), 생성 순
func (m *RunModel) GetIncomplete(ctx context.Context) ([]*Run, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status IN (?, ?) ORDER BY create_time, id`,
		RunStatusPending, RunStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteBefore 기준 시각 이전에 끝난 (완료/실패) 처리 기록을 삭제한다
func (m *RunModel) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM runs WHERE status IN (?, ?) AND update_time < ?`,
		RunStatusCompleted, RunStatusFailed, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (m *RunModel) update(ctx context.Context, id string, query string, args ...interface{}) error {
	res, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                    Run
		status                 string
		createTime, updateTime int64
	)
	err := s.Scan(&run.ID, &run.Source, &status, &run.Attempts, &run.EntryCount, &run.BuyerCount,
		&run.TotalAmount, &run.OutputPath, &run.ErrorMessage, &createTime, &updateTime)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.CreateTime = time.Unix(createTime, 0)
	run.UpdateTime = time.Unix(updateTime, 0)
	return &run, nil
}
