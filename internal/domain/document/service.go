package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/lumenmfb/backend/internal/domain/staff"
)

const MaxUploadBytes = 500_000

type Bucket string

const (
	BucketPassportPhotos Bucket = "passport-photos"
	BucketDocuments      Bucket = "documents"
	BucketSignatures     Bucket = "signatures"
	BucketLoanUploads    Bucket = "loan-uploads"
)

// Buckets lists every bucket a user's files may live in.
var Buckets = []Bucket{BucketPassportPhotos, BucketDocuments, BucketSignatures, BucketLoanUploads}

var (
	ErrUnknownBucket   = errors.New("unknown_bucket")
	ErrTooLarge        = errors.New("file_too_large")
	ErrEmpty           = errors.New("empty_file")
	ErrUnsupportedType = errors.New("unsupported_file_type")
	ErrInvalidKind     = errors.New("invalid_kind")
	ErrInvalidPath     = errors.New("invalid_path")
	ErrForbidden       = errors.New("forbidden")
)

var allowedTypes = map[Bucket][]string{
	BucketPassportPhotos: {"image/jpeg", "image/png", "image/webp"},
	BucketSignatures:     {"image/jpeg", "image/png", "image/webp"},
	BucketDocuments:      {"image/jpeg", "image/png", "image/webp", "application/pdf"},
	BucketLoanUploads:    {"image/jpeg", "image/png", "image/webp", "application/pdf"},
}

func ParseBucket(raw string) (Bucket, error) {
	b := Bucket(strings.TrimSpace(raw))
	if _, ok := allowedTypes[b]; !ok {
		return "", ErrUnknownBucket
	}
	return b, nil
}

// ObjectStore is the subset of object storage the portal needs.
type ObjectStore interface {
	Put(ctx context.Context, bucket Bucket, key string, body []byte, contentType string) error
	Delete(ctx context.Context, bucket Bucket, keys ...string) error
	List(ctx context.Context, bucket Bucket, prefix string) ([]string, error)
	PresignGet(ctx context.Context, bucket Bucket, key string, ttl time.Duration) (string, error)
}

type Stored struct {
	Bucket      Bucket `json:"bucket"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	store ObjectStore
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store ObjectStore, signedURLTTL time.Duration) *Service {
	if signedURLTTL <= 0 {
		signedURLTTL = time.Hour
	}
	return &Service{store: store, ttl: signedURLTTL, now: func() time.Time { return time.Now().UTC() }}
}

// Validate enforces the size limit and the bucket's content-type whitelist
// against the sniffed type of the payload.
func Validate(bucket Bucket, data []byte) (*mimetype.MIME, error) {
	allowed, ok := allowedTypes[bucket]
	if !ok {
		return nil, ErrUnknownBucket
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	detected := mimetype.Detect(data)
	for _, t := range allowed {
		if detected.Is(t) {
			return detected, nil
		}
	}
	return nil, ErrUnsupportedType
}

// Upload stores a file under <owner>/<kind>/<uuid><ext> and returns its path.
func (s *Service) Upload(ctx context.Context, ownerID string, bucket Bucket, kind string, r io.Reader) (*Stored, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !validSegment(kind) {
		return nil, ErrInvalidKind
	}
	if !validSegment(ownerID) {
		return nil, ErrInvalidPath
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, io.LimitReader(r, MaxUploadBytes+1)); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	detected, err := Validate(bucket, buf.Bytes())
	if err != nil {
		return nil, err
	}

	key := path.Join(ownerID, kind, uuid.NewString()+detected.Extension())
	if err := s.store.Put(ctx, bucket, key, buf.Bytes(), detected.String()); err != nil {
		return nil, err
	}
	return &Stored{Bucket: bucket, Path: key, ContentType: detected.String(), Size: buf.Len()}, nil
}

// Sign mints a time-limited URL. Customers may only sign their own files.
func (s *Service) Sign(ctx context.Context, actor staff.Actor, bucket Bucket, key string) (*SignedURL, error) {
	if _, ok := allowedTypes[bucket]; !ok {
		return nil, ErrUnknownBucket
	}
	if !cleanPath(key) {
		return nil, ErrInvalidPath
	}
	if !actor.IsStaff() && !OwnedBy(key, actor.UserID) {
		return nil, ErrForbidden
	}
	url, err := s.store.PresignGet(ctx, bucket, key, s.ttl)
	if err != nil {
		return nil, err
	}
	return &SignedURL{URL: url, ExpiresAt: s.now().Add(s.ttl)}, nil
}

// SignOptional is Sign for optional document fields: empty paths yield nil.
func (s *Service) SignOptional(ctx context.Context, actor staff.Actor, bucket Bucket, key string) *SignedURL {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	out, err := s.Sign(ctx, actor, bucket, key)
	if err != nil {
		return nil
	}
	return out
}

// RemoveAll deletes every object under the user's folder in every bucket.
// It keeps going when a bucket fails and reports per-bucket results.
func (s *Service) RemoveAll(ctx context.Context, userID string) (map[Bucket]int, []error) {
	deleted := map[Bucket]int{}
	var errs []error
	if !validSegment(userID) {
		return deleted, []error{ErrInvalidPath}
	}
	for _, b := range Buckets {
		keys, err := s.store.List(ctx, b, userID+"/")
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s/%s: %w", b, userID, err))
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := s.store.Delete(ctx, b, keys...); err != nil {
			errs = append(errs, fmt.Errorf("delete %s/%s: %w", b, userID, err))
			continue
		}
		deleted[b] = len(keys)
	}
	return deleted, errs
}

// OwnedBy reports whether a stored path lives in the user's folder.
func OwnedBy(key, userID string) bool {
	if userID == "" || !cleanPath(key) {
		return false
	}
	return strings.HasPrefix(key, userID+"/")
}

func cleanPath(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return path.Clean(key) == key && !strings.Contains(key, "..")
}

func validSegment(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
