package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// PracticeService manages the practices whose claims the pool funds.
type PracticeService interface {
	RegisterPractice(ctx context.Context, req RegisterPracticeRequest) (*entity.Practice, error)
	GetPractice(ctx context.Context, id int64) (*entity.Practice, error)
	ListPractices(ctx context.Context) ([]*entity.Practice, error)
}

// RegisterPracticeRequest carries a new practice onboarding.
type RegisterPracticeRequest struct {
	Name                     string
	TenureMonths             int
	HistoricalCleanClaimRate float64
	PayerMix                 string
	MaxExposureLimitCents    int64
}

type practiceService struct {
	practiceRepo port.PracticeRepository
	logger       *zap.Logger
}

// NewPracticeService creates a new practice service
func NewPracticeService(practiceRepo port.PracticeRepository, logger *zap.Logger) PracticeService {
	return &practiceService{
		practiceRepo: practiceRepo,
		logger:       logger,
	}
}

func (s *practiceService) RegisterPractice(ctx context.Context, req RegisterPracticeRequest) (*entity.Practice, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: practice name is required", ErrLedger)
	}
	if req.MaxExposureLimitCents < 0 {
		return nil, fmt.Errorf("%w: exposure limit must be non-negative", ErrLedger)
	}
	if req.HistoricalCleanClaimRate < 0 || req.HistoricalCleanClaimRate > 1 {
		return nil, fmt.Errorf("%w: clean claim rate must be within [0, 1]", ErrLedger)
	}

	practice := &entity.Practice{
		Name:                     req.Name,
		Status:                   entity.PracticeActive,
		TenureMonths:             req.TenureMonths,
		HistoricalCleanClaimRate: req.HistoricalCleanClaimRate,
		PayerMix:                 req.PayerMix,
		MaxExposureLimitCents:    req.MaxExposureLimitCents,
	}
	if err := s.practiceRepo.Create(ctx, practice); err != nil {
		return nil, fmt.Errorf("failed to register practice: %w", err)
	}

	s.logger.Info("Practice registered",
		zap.Int64("practice_id", practice.ID),
		zap.String("name", practice.Name))
	return practice, nil
}

func (s *practiceService) GetPractice(ctx context.Context, id int64) (*entity.Practice, error) {
	practice, err := s.practiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if practice == nil {
		return nil, fmt.Errorf("%w: practice %d", ErrNotFound, id)
	}
	return practice, nil
}

func (s *practiceService) ListPractices(ctx context.Context) ([]*entity.Practice, error) {
	return s.practiceRepo.List(ctx)
}
