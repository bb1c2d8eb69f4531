package audit

import (
	"time"

	"github.com/goliatone/go-crm/changeset"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entry is an append-only audit record. Entries are never updated or
// deleted by the application once written.
type Entry struct {
	bun.BaseModel `bun:"table:audit_logs,alias:alg"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActorID       *uuid.UUID     `bun:"actor_id,nullzero" json:"actor_id,omitempty"`
	Action        string         `bun:"action,notnull" json:"action,omitempty"`
	TargetType    string         `bun:"target_type,notnull" json:"target_type,omitempty"`
	TargetID      string         `bun:"target_id" json:"target_id,omitempty"`
	Summary       string         `bun:"summary,notnull" json:"summary,omitempty"`
	Diff          changeset.Diff `bun:"diff,type:jsonb" json:"diff,omitempty"`
	Metadata      map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
