package models

import (
	"time"

	"github.com/google/uuid"
)

// OriginKind is how a stored origin is compared with the request Origin.
type OriginKind string

const (
	OriginKindExact OriginKind = "exact"
	OriginKindRegex OriginKind = "regex"
)

// CorsOrigin is an allowed origin stored in the database for one deployment environment.
type CorsOrigin struct {
	ID          uuid.UUID  `json:"id"`
	Environment string     `json:"environment" validate:"required"`
	Kind        OriginKind `json:"kind" validate:"required,origin_kind"`
	Value       string     `json:"value" validate:"required"`
	CreatedAt   time.Time  `json:"created_at"`
}
