package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Entry is one recorded identification.
type Entry struct {
	ID             uuid.UUID `json:"id"`
	ImageURL       string    `json:"image_url"`
	Organs         string    `json:"organs"`
	OrganUsed      string    `json:"organ_used"`
	BestMatch      string    `json:"best_match"`
	BestScore      float64   `json:"best_score"`
	RemainingQuota *int      `json:"remaining_quota,omitempty"`
	Cached         bool      `json:"cached"`
	CreatedAt      time.Time `json:"created_at"`
}

// DB is the subset of pgxpool.Pool used here.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

// Record stores an entry, assigning an ID and timestamp when missing.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO identifications (id, image_url, organs, organ_used, best_match, best_score, remaining_quota, cached, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.ImageURL, e.Organs, e.OrganUsed, e.BestMatch, e.BestScore, e.RemainingQuota, e.Cached, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identification: %w", err)
	}
	return nil
}

// Recent lists the newest entries first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	rows, err := s.db.Query(ctx,
		`SELECT id, image_url, organs, organ_used, best_match, best_score, remaining_quota, cached, created_at
		 FROM identifications ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query identifications: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ImageURL, &e.Organs, &e.OrganUsed, &e.BestMatch, &e.BestScore, &e.RemainingQuota, &e.Cached, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identification: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identifications: %w", err)
	}
	return entries, nil
}

// ClampLimit applies the default and upper bound for list queries.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
