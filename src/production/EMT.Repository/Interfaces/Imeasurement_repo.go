package interfaces

import (
	"context"
	"time"

	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// MeasurementRepository is the store-facing contract shared by every quantity.
// All read operations return measurements sorted ascending by time.
type MeasurementRepository interface {
	// Query operations
	FindAll(ctx context.Context, phases []emtmodels.Phase) ([]emtmodels.Measurement, error)
	FindAllBetween(ctx context.Context, start, end time.Time, phases []emtmodels.Phase) ([]emtmodels.Measurement, error)
	FindSince(ctx context.Context, since time.Time, phases []emtmodels.Phase) ([]emtmodels.Measurement, error)

	// FindLast returns the single most recent measurement. It fails with
	// emtmodels.ErrNoDataFound when the series is empty.
	FindLast(ctx context.Context, phases []emtmodels.Phase) (*emtmodels.Measurement, error)

	// FindLastN returns up to n most recent measurements, ascending by time.
	// Fewer than n rows is not an error.
	FindLastN(ctx context.Context, n int, phases []emtmodels.Phase) ([]emtmodels.Measurement, error)

	// FindGroupedMinMaxMean partitions [start, end) into 400 equal windows and
	// aggregates each with min, mean and max. A nil result with a nil error
	// means the store rejected the aggregation; callers treat it as "nothing
	// to report". The triple is all-or-nothing.
	FindGroupedMinMaxMean(ctx context.Context, start, end time.Time, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error)

	// Write operations
	Save(ctx context.Context, m emtmodels.Measurement) error
	SaveAll(ctx context.Context, ms []emtmodels.Measurement) error
}
