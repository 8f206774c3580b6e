package contact

import (
	"context"
	"strings"
	"time"
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit normalises the request and stores it.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Submission, error) {
	submission := &Submission{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Service:     strings.TrimSpace(req.Service),
		Message:     strings.TrimSpace(req.Message),
		SubmittedAt: s.now().UTC(),
	}
	if submission.Service == "" {
		submission.Service = DefaultService
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		submission.Phone = &phone
	}

	if err := s.store.Save(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}
