package telemetry

import (
	"context"
	"fmt"
	"time"

	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
	interfaces "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Repository/Interfaces"
)

// Service orchestrates repository calls for one quantity. It owns the
// range-collapse policy: a zero-width since/grouped request is never passed
// to the windowed aggregator, it is snapped to the containing UTC day.
type Service struct {
	quantity emtmodels.Quantity
	repo     interfaces.MeasurementRepository
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a service for one quantity
func NewService(quantity emtmodels.Quantity, repo interfaces.MeasurementRepository, log *logger.Logger) *Service {
	return &Service{
		quantity: quantity,
		repo:     repo,
		logger:   log.WithComponent(string(quantity) + "-service"),
		now:      time.Now,
	}
}

// Quantity returns the quantity this service serves
func (s *Service) Quantity() emtmodels.Quantity {
	return s.quantity
}

func (s *Service) FindAll(ctx context.Context, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return s.repo.FindAll(ctx, phases)
}

func (s *Service) FindAllBetween(ctx context.Context, start, end time.Time, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return s.repo.FindAllBetween(ctx, start, end, phases)
}

// GetValueSince aggregates [since, now). When since equals now the range is
// zero-width and the window math degenerates, so the request is routed to
// the full-day aggregate instead.
func (s *Service) GetValueSince(ctx context.Context, since time.Time, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
	now := s.now()

	if since.Equal(now) {
		return s.GetAllValuesFromDate(ctx, since, phases)
	}

	return s.repo.FindGroupedMinMaxMean(ctx, since, now, phases)
}

// GetGroupedMinMaxMean aggregates [start, end), snapping a zero-width range
// to the containing UTC day.
func (s *Service) GetGroupedMinMaxMean(ctx context.Context, start, end time.Time, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
	if start.Equal(end) {
		return s.GetAllValuesFromDate(ctx, start, phases)
	}

	return s.repo.FindGroupedMinMaxMean(ctx, start, end, phases)
}

// GetAllValuesFromDate aggregates the whole UTC day containing date.
func (s *Service) GetAllValuesFromDate(ctx context.Context, date time.Time, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
	startOfDay := date.UTC().Truncate(24 * time.Hour)
	endOfDay := startOfDay.Add(24 * time.Hour)

	return s.repo.FindGroupedMinMaxMean(ctx, startOfDay, endOfDay, phases)
}

// GetLastValue returns the single most recent measurement. An empty series
// fails with emtmodels.ErrNoDataFound.
func (s *Service) GetLastValue(ctx context.Context, phases []emtmodels.Phase) (*emtmodels.Measurement, error) {
	return s.repo.FindLast(ctx, phases)
}

// GetLastN returns up to count most recent measurements, ascending by time.
func (s *Service) GetLastN(ctx context.Context, count int, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	return s.repo.FindLastN(ctx, count, phases)
}

func (s *Service) SaveValue(ctx context.Context, m emtmodels.Measurement) error {
	return s.repo.Save(ctx, m)
}

func (s *Service) SaveValues(ctx context.Context, ms []emtmodels.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	s.logger.Info(fmt.Sprintf("saving %d %s measurements", len(ms), s.quantity))
	return s.repo.SaveAll(ctx, ms)
}
