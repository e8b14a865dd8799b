package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/scanlink/internal/qr"
	"github.com/serroba/scanlink/internal/scan"
)

// MemoryStore is an in-memory implementation of qr.Repository and scan.Store.
type MemoryStore struct {
	mu     sync.RWMutex
	links  map[string]*qr.Link // id -> link
	slugs  map[qr.Slug]string  // slug -> id
	scans  map[string][]scan.Event
	now    func() time.Time
	scanID func() string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:  make(map[string]*qr.Link),
		slugs:  make(map[qr.Slug]string),
		scans:  make(map[string][]scan.Event),
		now:    time.Now,
		scanID: uuid.NewString,
	}
}

func (m *MemoryStore) Create(_ context.Context, link *qr.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slugs[link.Slug]; ok {
		return qr.ErrSlugTaken
	}

	stored := *link
	m.links[link.ID] = &stored
	m.slugs[link.Slug] = link.ID

	return nil
}

func (m *MemoryStore) FindBySlug(_ context.Context, slug qr.Slug) ([]*qr.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, nil
	}

	link := *m.links[id]

	return []*qr.Link{&link}, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*qr.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok {
		return nil, qr.ErrNotFound
	}

	found := *link

	return &found, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*qr.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []*qr.Link

	for _, link := range m.links {
		if link.OwnerID == ownerID {
			found := *link
			links = append(links, &found)
		}
	}

	slices.SortFunc(links, func(a, b *qr.Link) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return links, nil
}

func (m *MemoryStore) Update(_ context.Context, link *qr.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.links[link.ID]
	if !ok {
		return qr.ErrNotFound
	}

	stored.Name = link.Name
	stored.Destination = link.Destination

	return nil
}

// Insert appends a scan event, assigning its id and, when unset, its timestamp.
func (m *MemoryStore) Insert(_ context.Context, event *scan.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = m.scanID()
	}

	if event.ScannedAt.IsZero() {
		event.ScannedAt = m.now().UTC()
	}

	m.scans[event.QRID] = append(m.scans[event.QRID], *event)

	return nil
}

func (m *MemoryStore) ListByQR(_ context.Context, qrID string) ([]scan.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.scans[qrID]), nil
}

// Compile-time checks.
var (
	_ qr.Repository = (*MemoryStore)(nil)
	_ scan.Store    = (*MemoryStore)(nil)
)
