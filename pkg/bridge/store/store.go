// Package store persists finished-call records.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is the flat per-call row written at finalization.
type Record struct {
	Name                 string
	ContactNumber        string
	InterestedInHomeLoan string
	TimePeriodOfLoan     string
	LocationOfHome       string
	AnyOtherHomeLoan     string
	Transcript           string
}

// Store is the persistence sink for call records.
type Store interface {
	SaveCallRecord(ctx context.Context, rec Record) error
}

// Postgres writes call records into the call_details table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveCallRecord(ctx context.Context, rec Record) error {
	const query = `
		INSERT INTO call_details (
			name, contact_number, interested_in_home_loan,
			time_period_of_loan, location_of_home, any_other_home_loan,
			transcript
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := p.pool.Exec(ctx, query,
		rec.Name, rec.ContactNumber, rec.InterestedInHomeLoan,
		rec.TimePeriodOfLoan, rec.LocationOfHome, rec.AnyOtherHomeLoan,
		rec.Transcript,
	); err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// LogOnly is the sink used when no database is configured: records are
// written to the log and dropped.
type LogOnly struct {
	Log *slog.Logger
}

func (s LogOnly) SaveCallRecord(_ context.Context, rec Record) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("call record (no database configured)",
		"name", rec.Name,
		"contact_number", rec.ContactNumber,
		"interested_in_home_loan", rec.InterestedInHomeLoan,
		"time_period_of_loan", rec.TimePeriodOfLoan,
		"location_of_home", rec.LocationOfHome,
		"any_other_home_loan", rec.AnyOtherHomeLoan,
		"transcript_len", len(rec.Transcript),
	)
	return nil
}
