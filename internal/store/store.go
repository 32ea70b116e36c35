// Package store 把回测结果持久化到 SQLite：每次运行一条 runs 记录，
// 逐笔成交和每日净值快照挂在运行之下，方便事后对账和画净值曲线。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"optback/internal/money"
)

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Run 是一次完整回测的档案。
type Run struct {
	ID              string `json:"id"`
	Model           string `json:"model"`
	Symbol          string `json:"symbol"`
	Status          string `json:"status"`
	StartingBalance int64  `json:"starting_balance_cents"`
	EndingBalance   int64  `json:"ending_balance_cents"`
	FinalUnrealized int64  `json:"final_unrealized_cents"`
	CommissionPaid  int64  `json:"commission_cents"`
	Days            int    `json:"days"`
	Quotes          int    `json:"quotes"`
	StartedAt       int64  `json:"started_at"`
	FinishedAt      int64  `json:"finished_at"`
}

// Fill 是一笔成交的持久化投影，金额全部以美分整数落库。
type Fill struct {
	ID           int64  `json:"id"`
	RunID        string `json:"run_id"`
	Date         string `json:"date"`
	Contract     string `json:"contract"`
	Side         string `json:"side"`
	Intent       string `json:"intent"`
	Quantity     int    `json:"quantity"`
	FillPrice    int64  `json:"fill_price_cents"`
	Commission   int64  `json:"commission_cents"`
	BrokerClosed bool   `json:"broker_closed"`
}

// DaySnapshot 是净值曲线上的一个点。
type DaySnapshot struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	Date       string `json:"date"`
	Balance    int64  `json:"balance_cents"`
	Unrealized int64  `json:"unrealized_cents"`
}

// New 初始化 SQLite 存储，目录不存在时自动创建。
func New(path string) (*ResultStore, error) {
	if path == "" {
		return nil, fmt.Errorf("result store path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			symbol TEXT,
			status TEXT NOT NULL,
			starting_balance_cents INTEGER NOT NULL,
			ending_balance_cents INTEGER DEFAULT 0,
			final_unrealized_cents INTEGER DEFAULT 0,
			commission_cents INTEGER DEFAULT 0,
			days INTEGER DEFAULT 0,
			quotes INTEGER DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS fills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			contract TEXT NOT NULL,
			side TEXT NOT NULL,
			intent TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			fill_price_cents INTEGER NOT NULL,
			commission_cents INTEGER NOT NULL,
			broker_closed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id, id)`,
		`CREATE TABLE IF NOT EXISTS day_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			date TEXT NOT NULL,
			balance_cents INTEGER NOT NULL,
			unrealized_cents INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON day_snapshots(run_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("初始化结果库 schema 失败: %w", err)
		}
	}
	return nil
}

// CreateRun 登记一次新的回测运行，返回分配的 run ID。
func (s *ResultStore) CreateRun(ctx context.Context, model, symbol string, startingBalance money.Money) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", fmt.Errorf("result store 已关闭")
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, model, symbol, status, starting_balance_cents, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, model, symbol, StatusRunning, startingBalance.Cents(), time.Now().Unix())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun 回填运行结果并标记状态。
func (s *ResultStore) FinishRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("result store 已关闭")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ending_balance_cents = ?, final_unrealized_cents = ?,
		 commission_cents = ?, days = ?, quotes = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.EndingBalance, run.FinalUnrealized,
		run.CommissionPaid, run.Days, run.Quotes, time.Now().Unix(), run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s 不存在", run.ID)
	}
	return nil
}

func (s *ResultStore) InsertFill(ctx context.Context, f Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("result store 已关闭")
	}
	closed := 0
	if f.BrokerClosed {
		closed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fills (run_id, date, contract, side, intent, quantity, fill_price_cents, commission_cents, broker_closed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Date, f.Contract, f.Side, f.Intent, f.Quantity, f.FillPrice, f.Commission, closed)
	return err
}

func (s *ResultStore) InsertDaySnapshot(ctx context.Context, snap DaySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("result store 已关闭")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO day_snapshots (run_id, date, balance_cents, unrealized_cents)
		 VALUES (?, ?, ?, ?)`,
		snap.RunID, snap.Date, snap.Balance, snap.Unrealized)
	return err
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Run{}, fmt.Errorf("result store 已关闭")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, symbol, status, starting_balance_cents, ending_balance_cents,
		 final_unrealized_cents, commission_cents, days, quotes, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	var r Run
	err := row.Scan(&r.ID, &r.Model, &r.Symbol, &r.Status, &r.StartingBalance, &r.EndingBalance,
		&r.FinalUnrealized, &r.CommissionPaid, &r.Days, &r.Quotes, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %s 不存在", id)
	}
	return r, err
}

// ListRuns 按开始时间倒序返回最近的运行，limit <= 0 时取 50。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("result store 已关闭")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, symbol, status, starting_balance_cents, ending_balance_cents,
		 final_unrealized_cents, commission_cents, days, quotes, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Model, &r.Symbol, &r.Status, &r.StartingBalance, &r.EndingBalance,
			&r.FinalUnrealized, &r.CommissionPaid, &r.Days, &r.Quotes, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFills 按成交顺序返回一次运行的全部成交。
func (s *ResultStore) ListFills(ctx context.Context, runID string) ([]Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("result store 已关闭")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, date, contract, side, intent, quantity, fill_price_cents, commission_cents, broker_closed
		 FROM fills WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Fill
	for rows.Next() {
		var f Fill
		var closed int
		if err := rows.Scan(&f.ID, &f.RunID, &f.Date, &f.Contract, &f.Side, &f.Intent,
			&f.Quantity, &f.FillPrice, &f.Commission, &closed); err != nil {
			return nil, err
		}
		f.BrokerClosed = closed != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListDaySnapshots 按日期顺序返回一次运行的净值曲线点。
func (s *ResultStore) ListDaySnapshots(ctx context.Context, runID string) ([]DaySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("result store 已关闭")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, date, balance_cents, unrealized_cents
		 FROM day_snapshots WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DaySnapshot
	for rows.Next() {
		var d DaySnapshot
		if err := rows.Scan(&d.ID, &d.RunID, &d.Date, &d.Balance, &d.Unrealized); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
