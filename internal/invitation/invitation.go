// Package invitation manages the invitation tokens that admit participants.
package invitation

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/susu3304/warikanbot/internal/apperrors"
	"github.com/susu3304/warikanbot/internal/db"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(s)); st {
	case StatusPending, StatusAccepted, StatusExpired, StatusRevoked:
		return st, nil
	}
	return "", apperrors.Validation("unknown invitation status %q", s)
}

const (
	tokenBytes        = 32
	maxDisplayNameLen = 50
	defaultTTL        = 72 * time.Hour
)

type Invitation struct {
	ID                  string            `json:"id"`
	Token               string            `json:"token"`
	Status              Status            `json:"status"`
	CreatedBy           string            `json:"createdBy"`
	CreatedAt           string            `json:"createdAt"`
	ExpiresAt           string            `json:"expiresAt"`
	AcceptedBy          string            `json:"acceptedBy,omitempty"`
	AcceptedDisplayName string            `json:"acceptedDisplayName,omitempty"`
	AcceptedPictureURL  string            `json:"acceptedPictureUrl,omitempty"`
	AcceptedAt          string            `json:"acceptedAt,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Invalidator is notified whenever the set of accepted invitations changes.
type Invalidator interface {
	Invalidate()
}

type Repository struct {
	store       db.Store
	now         func() time.Time
	invalidator Invalidator
}

func NewRepository(store db.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// SetInvalidator registers the cache to flush on directory changes.
func (r *Repository) SetInvalidator(inv Invalidator) {
	r.invalidator = inv
}

func (r *Repository) changed() {
	if r.invalidator != nil {
		r.invalidator.Invalidate()
	}
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create issues a pending invitation valid for ttl. The storage-level expiry
// equals the invitation expiry, so unaccepted invitations are reclaimed.
func (r *Repository) Create(ctx context.Context, createdBy string, ttl time.Duration, metadata map[string]string) (Invitation, error) {
	if strings.TrimSpace(createdBy) == "" {
		return Invitation{}, apperrors.Validation("createdBy is required")
	}
	if ttl < 0 {
		return Invitation{}, apperrors.Validation("ttl must be positive")
	}
	if ttl == 0 {
		ttl = defaultTTL
	}
	token, err := newToken()
	if err != nil {
		return Invitation{}, apperrors.Wrap(apperrors.KindUnknown, err, "failed to create invitation")
	}

	now := r.now().UTC()
	expires := now.Add(ttl)
	inv := Invitation{
		ID:        uuid.NewString(),
		Token:     token,
		Status:    StatusPending,
		CreatedBy: createdBy,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: expires.Format(time.RFC3339),
		Metadata:  metadata,
	}
	if err := r.store.Put(ctx, db.Item{Record: toRecord(inv), ExpiresAt: expires.Unix()}); err != nil {
		return Invitation{}, apperrors.Storage(err, "failed to save invitation")
	}
	return inv, nil
}

// Get returns an invitation by id.
func (r *Repository) Get(ctx context.Context, id string) (Invitation, error) {
	item, err := r.store.Get(ctx, db.InvitationKey(id))
	if errors.Is(err, db.ErrNotFound) {
		return Invitation{}, apperrors.NotFound("invitation not found")
	}
	if err != nil {
		return Invitation{}, apperrors.Storage(err, "failed to get invitation")
	}
	return fromItem(item)
}

// List returns invitations, oldest first, optionally of one status.
func (r *Repository) List(ctx context.Context, status Status) ([]Invitation, error) {
	q := db.Query{Index: db.IndexGSI1, Partition: db.InvitationsPartition}
	if status != "" {
		q.Sort = db.BeginsWith(db.InvitationStatusPrefix(string(status)))
	}
	items, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list invitations")
	}
	out := make([]Invitation, 0, len(items))
	for _, item := range items {
		inv, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// ListAccepted returns every accepted invitation.
func (r *Repository) ListAccepted(ctx context.Context) ([]Invitation, error) {
	return r.List(ctx, StatusAccepted)
}

func (r *Repository) findByToken(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, apperrors.NotFound("invitation not found")
	}
	all, err := r.List(ctx, "")
	if err != nil {
		return Invitation{}, err
	}
	for _, inv := range all {
		if subtle.ConstantTimeCompare([]byte(inv.Token), []byte(token)) == 1 {
			return inv, nil
		}
	}
	return Invitation{}, apperrors.NotFound("invitation not found")
}

// Validate checks that token names a usable invitation. A pending invitation
// past its expiry is moved to expired before the error is returned.
func (r *Repository) Validate(ctx context.Context, token string) (Invitation, error) {
	inv, err := r.findByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	switch inv.Status {
	case StatusPending:
	case StatusAccepted:
		return inv, apperrors.New(apperrors.KindInvalidTransition, "invitation has already been used")
	default:
		return inv, apperrors.New(apperrors.KindExpired, "invitation is no longer valid")
	}

	expires, err := time.Parse(time.RFC3339, inv.ExpiresAt)
	if err != nil {
		return inv, apperrors.Wrap(apperrors.KindStorageFailure, err, "invitation has an invalid expiry")
	}
	if r.now().After(expires) {
		status := string(StatusExpired)
		if _, err := r.store.Update(ctx, db.InvitationKey(inv.ID), db.InvitationPatch{Status: &status}); err != nil && !errors.Is(err, db.ErrNotFound) {
			return inv, apperrors.Storage(err, "failed to expire invitation")
		}
		inv.Status = StatusExpired
		return inv, apperrors.New(apperrors.KindExpired, "invitation has expired")
	}
	return inv, nil
}

// Accept registers identity through the invitation named by token. An
// identity that already accepted any invitation is rejected with
// AlreadyRegistered and the target invitation is left untouched.
func (r *Repository) Accept(ctx context.Context, token, identity, displayName, pictureURL string) (Invitation, error) {
	if strings.TrimSpace(identity) == "" {
		return Invitation{}, apperrors.Validation("identity is required")
	}
	if err := validateDisplayName(displayName); err != nil {
		return Invitation{}, err
	}

	accepted, err := r.ListAccepted(ctx)
	if err != nil {
		return Invitation{}, err
	}
	for _, inv := range accepted {
		if inv.AcceptedBy == identity {
			return Invitation{}, apperrors.New(apperrors.KindAlreadyRegistered, "this account is already registered")
		}
	}

	inv, err := r.Validate(ctx, token)
	if err != nil {
		return Invitation{}, err
	}

	status := string(StatusAccepted)
	at := r.now().UTC().Format(time.RFC3339)
	item, err := r.store.Update(ctx, db.InvitationKey(inv.ID), db.InvitationPatch{
		Status:              &status,
		AcceptedBy:          &identity,
		AcceptedDisplayName: &displayName,
		AcceptedPictureURL:  &pictureURL,
		AcceptedAt:          &at,
		ClearExpiry:         true,
	})
	if errors.Is(err, db.ErrNotFound) {
		return Invitation{}, apperrors.NotFound("invitation not found")
	}
	if err != nil {
		return Invitation{}, apperrors.Storage(err, "failed to accept invitation")
	}
	r.changed()
	return fromItem(item)
}

// Revoke forces an invitation to expired whatever its status. Revoking an
// accepted invitation removes the participant from the directory.
func (r *Repository) Revoke(ctx context.Context, id string) (Invitation, error) {
	status := string(StatusExpired)
	item, err := r.store.Update(ctx, db.InvitationKey(id), db.InvitationPatch{Status: &status})
	if errors.Is(err, db.ErrNotFound) {
		return Invitation{}, apperrors.NotFound("invitation not found")
	}
	if err != nil {
		return Invitation{}, apperrors.Storage(err, "failed to revoke invitation")
	}
	r.changed()
	return fromItem(item)
}

// UpdateDisplayName renames the participant registered as identity.
func (r *Repository) UpdateDisplayName(ctx context.Context, identity, displayName string) (Invitation, error) {
	if err := validateDisplayName(displayName); err != nil {
		return Invitation{}, err
	}
	accepted, err := r.ListAccepted(ctx)
	if err != nil {
		return Invitation{}, err
	}
	for _, inv := range accepted {
		if inv.AcceptedBy != identity {
			continue
		}
		item, err := r.store.Update(ctx, db.InvitationKey(inv.ID), db.InvitationPatch{AcceptedDisplayName: &displayName})
		if errors.Is(err, db.ErrNotFound) {
			break
		}
		if err != nil {
			return Invitation{}, apperrors.Storage(err, "failed to update display name")
		}
		r.changed()
		return fromItem(item)
	}
	return Invitation{}, apperrors.NotFound("participant not found")
}

func validateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.Validation("display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return apperrors.Validation("display name must be at most %d characters", maxDisplayNameLen)
	}
	return nil
}

func toRecord(inv Invitation) db.InvitationRecord {
	return db.InvitationRecord{
		ID:                  inv.ID,
		Token:               inv.Token,
		Status:              string(inv.Status),
		CreatedBy:           inv.CreatedBy,
		CreatedAt:           inv.CreatedAt,
		ExpiresAt:           inv.ExpiresAt,
		AcceptedBy:          inv.AcceptedBy,
		AcceptedDisplayName: inv.AcceptedDisplayName,
		AcceptedPictureURL:  inv.AcceptedPictureURL,
		AcceptedAt:          inv.AcceptedAt,
		Metadata:            inv.Metadata,
	}
}

func fromItem(item db.Item) (Invitation, error) {
	rec, ok := item.Record.(db.InvitationRecord)
	if !ok {
		return Invitation{}, apperrors.New(apperrors.KindStorageFailure, "unexpected %s record in invitation facet", item.Record.Kind())
	}
	return Invitation{
		ID:                  rec.ID,
		Token:               rec.Token,
		Status:              Status(rec.Status),
		CreatedBy:           rec.CreatedBy,
		CreatedAt:           rec.CreatedAt,
		ExpiresAt:           rec.ExpiresAt,
		AcceptedBy:          rec.AcceptedBy,
		AcceptedDisplayName: rec.AcceptedDisplayName,
		AcceptedPictureURL:  rec.AcceptedPictureURL,
		AcceptedAt:          rec.AcceptedAt,
		Metadata:            rec.Metadata,
	}, nil
}
