// Package participant caches the directory of accepted participants.
package participant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/susu3304/warikanbot/internal/invitation"
)

// Participant is a registered member.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// Source loads accepted invitations.
type Source interface {
	ListAccepted(ctx context.Context) ([]invitation.Invitation, error)
}

// Directory is a process-lifetime cache over Source. It is refreshed on the
// first read after Invalidate or after maxAge has passed; zero maxAge keeps
// entries until invalidated.
type Directory struct {
	source Source
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   []Participant
	loadedAt time.Time
	valid    bool
}

func NewDirectory(source Source, maxAge time.Duration) *Directory {
	return &Directory{source: source, maxAge: maxAge, now: time.Now}
}

// Invalidate drops the cached listing.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = false
	d.cached = nil
}

// List returns every participant ordered by id.
func (d *Directory) List(ctx context.Context) ([]Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.valid && (d.maxAge <= 0 || d.now().Sub(d.loadedAt) < d.maxAge) {
		return append([]Participant(nil), d.cached...), nil
	}

	accepted, err := d.source.ListAccepted(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]Participant, 0, len(accepted))
	for _, inv := range accepted {
		list = append(list, Participant{
			ID:          inv.AcceptedBy,
			DisplayName: inv.AcceptedDisplayName,
			PictureURL:  inv.AcceptedPictureURL,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	d.cached = list
	d.loadedAt = d.now()
	d.valid = true
	return append([]Participant(nil), list...), nil
}

// Get returns the participant with id.
func (d *Directory) Get(ctx context.Context, id string) (Participant, bool, error) {
	list, err := d.List(ctx)
	if err != nil {
		return Participant{}, false, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, true, nil
		}
	}
	return Participant{}, false, nil
}

// DisplayName returns the name of id, or id itself when unknown.
func (d *Directory) DisplayName(ctx context.Context, id string) string {
	p, ok, err := d.Get(ctx, id)
	if err != nil || !ok || p.DisplayName == "" {
		return id
	}
	return p.DisplayName
}
