package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag-qa/internal/config"
)

// IngestionRun is one pass of the ingestion pipeline over the data directory.
type IngestionRun struct {
	bun.BaseModel `bun:"table:ingestion_runs,alias:ir"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	StartedAt     time.Time `bun:"started_at,notnull" json:"startedAt"`
	FinishedAt    time.Time `bun:"finished_at,notnull" json:"finishedAt"`
	Files         int       `bun:"files,notnull" json:"files"`
	Pages         int       `bun:"pages,notnull" json:"pages"`
	Chunks        int       `bun:"chunks,notnull" json:"chunks"`
	Entries       int       `bun:"entries,notnull" json:"entries"`
	Dedup         string    `bun:"dedup,notnull" json:"dedup"`
	Error         string    `bun:"error" json:"error,omitempty"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database named by cfg.URL. Nothing is dialed until the
// first query.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	if cfg.Driver == config.DriverPQ {
		return sql.Open("postgres", cfg.URL)
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.URL))), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*IngestionRun)(nil)).IfNotExists().Exec(ctx)
	return err
}

// RunLog stores ingestion runs.
type RunLog struct {
	db *bun.DB
}

func NewRunLog(db *bun.DB) *RunLog {
	return &RunLog{db: db}
}

func (l *RunLog) Record(ctx context.Context, run *IngestionRun) error {
	_, err := l.db.NewInsert().Model(run).Exec(ctx)
	return err
}

// Recent returns the latest runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]IngestionRun, error) {
	runs := []IngestionRun{}
	err := l.recentQuery(&runs, limit).Scan(ctx)
	return runs, err
}

func (l *RunLog) recentQuery(runs *[]IngestionRun, limit int) *bun.SelectQuery {
	if limit <= 0 {
		limit = 20
	}
	return l.db.NewSelect().
		Model(runs).
		OrderExpr("started_at DESC").
		Limit(limit)
}

func (l *RunLog) Close() error {
	return l.db.Close()
}
