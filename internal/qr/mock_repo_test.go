package qr_test

import (
	"context"
	"errors"

	"github.com/serroba/scanlink/internal/qr"
)

var errMock = errors.New("mock error")

// mockRepo is a test double for qr.Repository with configurable results.
type mockRepo struct {
	found     []*qr.Link
	findErr   error
	createErr []error // consumed one per Create call
	getLink   *qr.Link
	getErr    error
	updateErr error

	calls   int
	created []*qr.Link
	updated *qr.Link
}

func (m *mockRepo) Create(_ context.Context, link *qr.Link) error {
	m.calls++

	copied := *link
	m.created = append(m.created, &copied)

	if len(m.createErr) == 0 {
		return nil
	}

	err := m.createErr[0]
	m.createErr = m.createErr[1:]

	return err
}

func (m *mockRepo) FindBySlug(_ context.Context, _ qr.Slug) ([]*qr.Link, error) {
	m.calls++

	return m.found, m.findErr
}

func (m *mockRepo) GetByID(_ context.Context, _ string) (*qr.Link, error) {
	m.calls++

	if m.getErr != nil {
		return nil, m.getErr
	}

	copied := *m.getLink

	return &copied, nil
}

func (m *mockRepo) ListByOwner(_ context.Context, _ string) ([]*qr.Link, error) {
	m.calls++

	return m.found, m.findErr
}

func (m *mockRepo) Update(_ context.Context, link *qr.Link) error {
	m.calls++
	m.updated = link

	return m.updateErr
}
