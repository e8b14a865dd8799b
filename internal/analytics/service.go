package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/serroba/scanlink/internal/scan"
)

// Service loads the scans of a link and summarizes them.
type Service struct {
	scans    scan.Store
	location *time.Location
}

// NewService creates a service that buckets trend dates in location unless a caller
// asks for another one.
func NewService(scans scan.Store, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}

	return &Service{scans: scans, location: location}
}

// Location returns the default display location.
func (s *Service) Location() *time.Location {
	return s.location
}

// ForLink summarizes every scan of qrID. A nil loc uses the service default.
func (s *Service) ForLink(ctx context.Context, qrID string, loc *time.Location) (Summary, error) {
	events, err := s.scans.ListByQR(ctx, qrID)
	if err != nil {
		return Summary{}, fmt.Errorf("list scans: %w", err)
	}

	if loc == nil {
		loc = s.location
	}

	return Aggregate(events, loc), nil
}
