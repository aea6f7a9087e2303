package account

import (
	"context"
	"errors"
	"time"

	"github.com/lumenmfb/backend/internal/domain/staff"
)

var (
	ErrNotFound        = errors.New("account_application_not_found")
	ErrAlreadyExists   = errors.New("account_application_exists")
	ErrAlreadyReviewed = errors.New("account_application_reviewed")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidDecision = errors.New("invalid_decision")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

type Type string

const (
	TypeSavings Type = "savings"
	TypeCurrent Type = "current"
)

type Entity struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	FullName          string     `json:"full_name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	DateOfBirth       string     `json:"date_of_birth"`
	Address           string     `json:"address"`
	AccountType       Type       `json:"account_type"`
	BVN               string     `json:"bvn"`
	NIN               string     `json:"nin"`
	PassportPhotoPath string     `json:"passport_photo_path"`
	SignaturePath     string     `json:"signature_path"`
	IDDocumentPath    string     `json:"id_document_path"`
	Status            Status     `json:"status"`
	ReviewedBy        *string    `json:"reviewed_by,omitempty"`
	ReviewNotes       string     `json:"review_notes,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type CreateInput struct {
	UserID            string `json:"-"`
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	DateOfBirth       string `json:"date_of_birth"`
	Address           string `json:"address"`
	AccountType       Type   `json:"account_type"`
	BVN               string `json:"bvn"`
	NIN               string `json:"nin"`
	PassportPhotoPath string `json:"passport_photo_path"`
	SignaturePath     string `json:"signature_path"`
	IDDocumentPath    string `json:"id_document_path"`
}

type ListFilter struct {
	Status string
	Limit  int32
	Offset int32
}

// ReviewInput is an operations decision on a pending application. The
// repository applies it only while the row is still pending.
type ReviewInput struct {
	ApplicationID string
	Actor         staff.Actor
	Decision      Status
	Notes         string
	At            time.Time
	EventPayload  []byte
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	GetByUser(ctx context.Context, userID string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, error)
	Review(ctx context.Context, in ReviewInput) (*Entity, error)
}
