package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/originguard/internal/cors"
	"github.com/benvon/originguard/internal/models"
	"github.com/benvon/originguard/internal/validation"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicateOrigin is returned by Add when the same entry already exists.
var ErrDuplicateOrigin = errors.New("cors origin already exists")

// ErrOriginNotFound is returned by Remove when no row has the given ID.
var ErrOriginNotFound = errors.New("cors origin not found")

const uniqueViolation = "23505"

// CorsOriginRepository stores extra allowed origins per environment.
type CorsOriginRepository struct {
	db *DB
}

// NewCorsOriginRepository creates a new CORS origin repository.
func NewCorsOriginRepository(db *DB) *CorsOriginRepository {
	return &CorsOriginRepository{db: db}
}

// List returns the origins for environment, oldest first.
func (r *CorsOriginRepository) List(ctx context.Context, environment string) ([]*models.CorsOrigin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, environment, kind, value, created_at
		FROM cors_origins
		WHERE environment = $1
		ORDER BY created_at, value
	`, environment)
	if err != nil {
		return nil, fmt.Errorf("list cors origins: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.CorsOrigin
	for rows.Next() {
		o := &models.CorsOrigin{}
		if err := rows.Scan(&o.ID, &o.Environment, &o.Kind, &o.Value, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cors origin: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cors origins: %w", err)
	}
	return out, nil
}

// Add validates and inserts o, filling in ID and CreatedAt. Exact values must
// be bare origins and regular expressions must compile, so a bad row never
// reaches the server.
func (r *CorsOriginRepository) Add(ctx context.Context, o *models.CorsOrigin) error {
	o.Environment = strings.TrimSpace(o.Environment)
	o.Value = strings.TrimSpace(o.Value)
	if err := validation.Validate.Struct(o); err != nil {
		return fmt.Errorf("invalid cors origin: %w", err)
	}

	o.ID = uuid.New()
	o.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_origins (id, environment, kind, value, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.Environment, string(o.Kind), o.Value, o.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateOrigin
		}
		return fmt.Errorf("add cors origin: %w", err)
	}
	return nil
}

// Remove deletes the origin with the given ID.
func (r *CorsOriginRepository) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cors_origins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove cors origin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove cors origin: %w", err)
	}
	if n == 0 {
		return ErrOriginNotFound
	}
	return nil
}

// Patterns loads the stored origins of environment as authorizer patterns.
func (r *CorsOriginRepository) Patterns(ctx context.Context, environment string) ([]cors.Pattern, error) {
	origins, err := r.List(ctx, environment)
	if err != nil {
		return nil, err
	}
	return ToPatterns(origins)
}

// ToPatterns converts stored rows into authorizer patterns.
func ToPatterns(origins []*models.CorsOrigin) ([]cors.Pattern, error) {
	out := make([]cors.Pattern, 0, len(origins))
	for _, o := range origins {
		p, err := cors.NewPattern(cors.PatternKind(o.Kind), o.Value)
		if err != nil {
			return nil, fmt.Errorf("stored cors origin %s: %w", o.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}
