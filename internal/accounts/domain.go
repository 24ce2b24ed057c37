package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Status labels exposed in summary views.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Account is the persisted account record. A non-nil DeletedAt marks a soft
// deleted account; soft deleted accounts are still returned by every listing.
type Account struct {
	ID         uuid.UUID  `json:"id"`
	HolderName string     `json:"holder_name"`
	TaxID      string     `json:"tax_id"`
	Email      string     `json:"email,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
	Active     bool       `json:"active"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// StatusLabel derives the label from Active. It is never stored.
func (a Account) StatusLabel() string {
	if a.Active {
		return StatusActive
	}
	return StatusInactive
}

// IsDeleted reports whether the account is soft deleted.
func (a Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

// Summary projects the account into the partner-facing view.
func (a Account) Summary() SummaryView {
	return SummaryView{
		ID:          a.ID,
		Name:        a.HolderName,
		TaxID:       a.TaxID,
		StatusLabel: a.StatusLabel(),
	}
}

// SummaryView is the reduced account projection shared with partners and
// stored in the cache.
type SummaryView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	TaxID       string    `json:"tax_id"`
	StatusLabel string    `json:"status_label"`
}

// Accepted range for a requested year.
const (
	minYear = 1
	maxYear = 9999
)

// YearlyTotal counts accounts created in a calendar year (UTC).
type YearlyTotal struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// StatusSummary counts accounts by status.
type StatusSummary struct {
	ActiveCount   int `json:"active_count"`
	InactiveCount int `json:"inactive_count"`
	TotalCount    int `json:"total_count"`
}

// CreateAccountRequest is the body accepted by the create endpoint.
type CreateAccountRequest struct {
	HolderName string `json:"holder_name" validate:"required"`
	TaxID      string `json:"tax_id" validate:"required,len=11,numeric"`
	Email      string `json:"email" validate:"omitempty,email"`
	Active     bool   `json:"active"`
}

// UpdateAccountRequest is the full replacement body of the update endpoint.
// CreatedAt and UpdatedAt are accepted for symmetry with the read model but
// ignored: the creation time is immutable and the update time is stamped by
// the server.
type UpdateAccountRequest struct {
	ID         uuid.UUID  `json:"id"`
	HolderName string     `json:"holder_name" validate:"required"`
	TaxID      string     `json:"tax_id" validate:"required,len=11,numeric"`
	Email      string     `json:"email" validate:"omitempty,email"`
	Active     bool       `json:"active"`
	DeletedAt  *time.Time `json:"deleted_at"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// StatusChange is returned by activate and deactivate.
type StatusChange struct {
	Message string    `json:"message"`
	ID      uuid.UUID `json:"id"`
	Status  bool      `json:"status"`
}

// DeletionChange is returned by soft delete and restore.
type DeletionChange struct {
	Message string    `json:"message"`
	ID      uuid.UUID `json:"id"`
}

func summaries(list []Account) []SummaryView {
	out := make([]SummaryView, 0, len(list))
	for _, a := range list {
		out = append(out, a.Summary())
	}
	return out
}
