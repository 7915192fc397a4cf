package telemetry

import (
	"context"
	"testing"
	"time"

	config "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Config"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// fakeRepo records the arguments of the last grouped call and returns canned
// results.
type fakeRepo struct {
	groupedStart  time.Time
	groupedEnd    time.Time
	groupedPhases []emtmodels.Phase
	groupedCalls  int
	triple        *emtmodels.MinMaxMean

	savedBatch []emtmodels.Measurement
}

func (f *fakeRepo) FindAll(_ context.Context, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return nil, nil
}

func (f *fakeRepo) FindAllBetween(_ context.Context, _, _ time.Time, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return nil, nil
}

func (f *fakeRepo) FindSince(_ context.Context, _ time.Time, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return nil, nil
}

func (f *fakeRepo) FindLast(_ context.Context, _ []emtmodels.Phase) (*emtmodels.Measurement, error) {
	return nil, emtmodels.ErrNoDataFound
}

func (f *fakeRepo) FindLastN(_ context.Context, _ int, _ []emtmodels.Phase) ([]emtmodels.Measurement, error) {
	return nil, nil
}

func (f *fakeRepo) FindGroupedMinMaxMean(_ context.Context, start, end time.Time, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
	f.groupedCalls++
	f.groupedStart = start
	f.groupedEnd = end
	f.groupedPhases = phases
	return f.triple, nil
}

func (f *fakeRepo) Save(_ context.Context, _ emtmodels.Measurement) error {
	return nil
}

func (f *fakeRepo) SaveAll(_ context.Context, ms []emtmodels.Measurement) error {
	f.savedBatch = ms
	return nil
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "json"})
}

func newTestService(repo *fakeRepo, now time.Time) *Service {
	svc := NewService(emtmodels.QuantityCurrent, repo, testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestGetValueSince_DelegatesWithNowAsUpperBound(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	since := now.Add(-2 * time.Hour)
	repo := &fakeRepo{triple: &emtmodels.MinMaxMean{}}
	svc := newTestService(repo, now)

	phases := []emtmodels.Phase{emtmodels.PhaseL1}
	if _, err := svc.GetValueSince(context.Background(), since, phases); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !repo.groupedStart.Equal(since) {
		t.Errorf("Expected start %v, got %v", since, repo.groupedStart)
	}
	if !repo.groupedEnd.Equal(now) {
		t.Errorf("Expected end %v, got %v", now, repo.groupedEnd)
	}
	if len(repo.groupedPhases) != 1 || repo.groupedPhases[0] != emtmodels.PhaseL1 {
		t.Errorf("Expected phases passed through, got %v", repo.groupedPhases)
	}
}

func TestGetValueSince_ZeroWidthRangeSnapsToUTCDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 30, 45, 0, time.UTC)
	repo := &fakeRepo{triple: &emtmodels.MinMaxMean{}}
	svc := newTestService(repo, now)

	if _, err := svc.GetValueSince(context.Background(), now, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !repo.groupedStart.Equal(wantStart) {
		t.Errorf("Expected start of day %v, got %v", wantStart, repo.groupedStart)
	}
	if !repo.groupedEnd.Equal(wantEnd) {
		t.Errorf("Expected end of day %v, got %v", wantEnd, repo.groupedEnd)
	}
}

func TestGetGroupedMinMaxMean_EqualBoundsSnapToUTCDay(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	repo := &fakeRepo{triple: &emtmodels.MinMaxMean{}}
	svc := newTestService(repo, at)

	if _, err := svc.GetGroupedMinMaxMean(context.Background(), at, at, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !repo.groupedStart.Equal(wantStart) {
		t.Errorf("Expected start of day %v, got %v", wantStart, repo.groupedStart)
	}
	if !repo.groupedEnd.Equal(wantStart.Add(24 * time.Hour)) {
		t.Errorf("Expected full-day range, got end %v", repo.groupedEnd)
	}
}

func TestGetGroupedMinMaxMean_NormalRangeDelegates(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	repo := &fakeRepo{triple: &emtmodels.MinMaxMean{}}
	svc := newTestService(repo, end)

	if _, err := svc.GetGroupedMinMaxMean(context.Background(), start, end, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !repo.groupedStart.Equal(start) || !repo.groupedEnd.Equal(end) {
		t.Errorf("Expected [%v, %v), got [%v, %v)", start, end, repo.groupedStart, repo.groupedEnd)
	}
}

func TestGetGroupedMinMaxMean_NilTriplePassesThrough(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{triple: nil}
	svc := newTestService(repo, start)

	triple, err := svc.GetGroupedMinMaxMean(context.Background(), start, start.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if triple != nil {
		t.Errorf("Expected nil triple passed through, got %+v", triple)
	}
}

func TestGetLastN_RejectsNonPositiveCount(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, time.Now())

	if _, err := svc.GetLastN(context.Background(), 0, nil); err == nil {
		t.Error("Expected error for count 0")
	}
	if _, err := svc.GetLastN(context.Background(), -3, nil); err == nil {
		t.Error("Expected error for negative count")
	}
}

func TestSaveValues_EmptyBatchIsNoop(t *testing.T) {
	repo := &fakeRepo{savedBatch: []emtmodels.Measurement{{Value: 1}}}
	svc := newTestService(repo, time.Now())

	if err := svc.SaveValues(context.Background(), nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// repository must not have been touched
	if len(repo.savedBatch) != 1 {
		t.Errorf("Expected repository untouched, got %v", repo.savedBatch)
	}
}
