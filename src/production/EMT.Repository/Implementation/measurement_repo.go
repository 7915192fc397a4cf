package implementation

import (
	"context"
	"fmt"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// QuantityDescriptor configures the generic repository for one quantity:
// the measurement name written to the store and the bucket it lives in.
type QuantityDescriptor struct {
	Quantity emtmodels.Quantity
	Bucket   string
}

// InfluxMeasurementRepository is the single repository implementation shared
// by every quantity. One instance per quantity, configured by descriptor.
type InfluxMeasurementRepository struct {
	queryAPI   api.QueryAPI
	writeAPI   api.WriteAPIBlocking
	desc       QuantityDescriptor
	logQueries bool
	logger     *logger.Logger
}

// NewInfluxMeasurementRepository creates a repository for one quantity
func NewInfluxMeasurementRepository(client influxdb2.Client, org string, desc QuantityDescriptor, logQueries bool, log *logger.Logger) *InfluxMeasurementRepository {
	return &InfluxMeasurementRepository{
		queryAPI:   client.QueryAPI(org),
		writeAPI:   client.WriteAPIBlocking(org, desc.Bucket),
		desc:       desc,
		logQueries: logQueries,
		logger:     log.WithComponent(string(desc.Quantity) + "-repository"),
	}
}

func (r *InfluxMeasurementRepository) FindAll(ctx context.Context, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return r.runQuery(ctx, buildFindAllQuery(r.desc.Bucket, r.desc.Quantity, phases))
}

func (r *InfluxMeasurementRepository) FindAllBetween(ctx context.Context, start, end time.Time, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return r.runQuery(ctx, buildBetweenQuery(r.desc.Bucket, r.desc.Quantity, start, end, phases))
}

func (r *InfluxMeasurementRepository) FindSince(ctx context.Context, since time.Time, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return r.runQuery(ctx, buildSinceQuery(r.desc.Bucket, r.desc.Quantity, since, phases))
}

func (r *InfluxMeasurementRepository) FindLast(ctx context.Context, phases []emtmodels.Phase) (*emtmodels.Measurement, error) {
	result, err := r.runQuery(ctx, buildLastQuery(r.desc.Bucket, r.desc.Quantity, phases))
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, emtmodels.ErrNoDataFound
	}
	if len(result) > 1 {
		// last() per series can return one row per phase; the first row wins
		r.logger.Warn(fmt.Sprintf("last-value query returned %d rows, using the first", len(result)))
	}

	return &result[0], nil
}

func (r *InfluxMeasurementRepository) FindLastN(ctx context.Context, n int, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	result, err := r.runQuery(ctx, buildLastNQuery(r.desc.Bucket, r.desc.Quantity, n, phases))
	if err != nil {
		return nil, err
	}

	// The store returns the newest rows first; callers expect ascending time.
	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})

	return result, nil
}

// FindGroupedMinMaxMean issues the three windowed sub-queries sequentially.
// If the store rejects any of them the whole triple is discarded, keeping
// the three sequences index-aligned for downstream consumers.
func (r *InfluxMeasurementRepository) FindGroupedMinMaxMean(ctx context.Context, start, end time.Time, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
	triple := &emtmodels.MinMaxMean{}

	for _, sub := range []struct {
		fn   string
		dest *[]emtmodels.Measurement
	}{
		{"min", &triple.Min},
		{"mean", &triple.Mean},
		{"max", &triple.Max},
	} {
		result, err := r.runQuery(ctx, buildAggregateQuery(r.desc.Bucket, r.desc.Quantity, start, end, phases, sub.fn))
		if err != nil {
			r.logger.ErrorWithError(err, fmt.Sprintf("no data found to aggregate between %s and %s", start, end))
			return nil, nil
		}
		if result == nil {
			result = []emtmodels.Measurement{}
		}
		*sub.dest = result
	}

	return triple, nil
}

func (r *InfluxMeasurementRepository) Save(ctx context.Context, m emtmodels.Measurement) error {
	// time cannot be in the future
	now := time.Now().UTC()

	if err := r.writeAPI.WritePoint(ctx, r.pointFor(m, now)); err != nil {
		return err
	}
	return r.writeAPI.Flush(ctx)
}

func (r *InfluxMeasurementRepository) SaveAll(ctx context.Context, ms []emtmodels.Measurement) error {
	if len(ms) == 0 {
		return nil
	}

	// one shared now for the whole batch, so every clamped point agrees
	now := time.Now().UTC()

	points := make([]*write.Point, 0, len(ms))
	for _, m := range ms {
		points = append(points, r.pointFor(m, now))
	}

	if err := r.writeAPI.WritePoint(ctx, points...); err != nil {
		return err
	}
	return r.writeAPI.Flush(ctx)
}

func (r *InfluxMeasurementRepository) pointFor(m emtmodels.Measurement, now time.Time) *write.Point {
	ts := clampFutureTimestamp(m.Time, now)
	if !ts.Equal(m.Time) {
		r.logger.Warn(fmt.Sprintf("%s is after now (%s in UTC) timestamp, replacing it with %s", m.Time, now, now))
	}

	tags := map[string]string{}
	if r.desc.Quantity.PhaseTagged() && m.Phase != "" {
		tags["phase"] = string(m.Phase)
	}

	return influxdb2.NewPoint(
		string(r.desc.Quantity),
		tags,
		map[string]interface{}{"value": m.Value},
		ts.Truncate(time.Second),
	)
}

// clampFutureTimestamp replaces a forward-dated timestamp with now so that
// downstream aggregation windows never see future data.
func clampFutureTimestamp(ts, now time.Time) time.Time {
	if ts.After(now) {
		return now
	}
	return ts
}

func (r *InfluxMeasurementRepository) runQuery(ctx context.Context, flux string) ([]emtmodels.Measurement, error) {
	if r.logQueries {
		r.logger.Debug(flux)
	}

	result, err := r.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}

	var measurements []emtmodels.Measurement
	for result.Next() {
		record := result.Record()

		value, ok := record.Value().(float64)
		if !ok {
			continue
		}

		m := emtmodels.Measurement{Value: value, Time: record.Time()}
		if r.desc.Quantity.PhaseTagged() {
			if phase, ok := record.ValueByKey("phase").(string); ok {
				m.Phase = emtmodels.Phase(phase)
			}
		}

		measurements = append(measurements, m)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	return measurements, nil
}
