package implementation

import (
	"fmt"
	"strings"
	"time"

	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// aggregateWindowCount is the fixed number of windows every grouped
// min/max/mean query is partitioned into.
const aggregateWindowCount = 400

// phaseFilter renders the phase restriction fragment appended to the
// measurement filter. An empty phase set matches all phases and renders
// to the empty string. Input order is preserved.
func phaseFilter(phases []emtmodels.Phase) string {
	if len(phases) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(" and (")
	for i, phase := range phases {
		if i > 0 {
			b.WriteString(" or ")
		}
		fmt.Fprintf(&b, "r.phase == %q", string(phase))
	}
	b.WriteString(")")

	return b.String()
}

// windowDuration computes the width of one aggregation window for the range
// [start, end) in whole milliseconds, floor-divided. Ranges shorter than 400ms
// would floor to a zero width the store rejects, so the width is clamped to
// a 1ms minimum.
func windowDuration(start, end time.Time) time.Duration {
	millis := end.Sub(start).Milliseconds() / aggregateWindowCount
	if millis < 1 {
		millis = 1
	}
	return time.Duration(millis) * time.Millisecond
}

func fluxTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func buildFindAllQuery(bucket string, quantity emtmodels.Quantity, phases []emtmodels.Phase) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q%s)
  |> sort(columns: ["_time"])`, bucket, string(quantity), phaseFilter(phases))
}

func buildBetweenQuery(bucket string, quantity emtmodels.Quantity, start, end time.Time, phases []emtmodels.Phase) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q%s)
  |> sort(columns: ["_time"])`, bucket, fluxTime(start), fluxTime(end), string(quantity), phaseFilter(phases))
}

func buildSinceQuery(bucket string, quantity emtmodels.Quantity, since time.Time, phases []emtmodels.Phase) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == %q%s)
  |> sort(columns: ["_time"])`, bucket, fluxTime(since), string(quantity), phaseFilter(phases))
}

func buildLastQuery(bucket string, quantity emtmodels.Quantity, phases []emtmodels.Phase) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q%s)
  |> sort(columns: ["_time"])
  |> last()`, bucket, string(quantity), phaseFilter(phases))
}

func buildLastNQuery(bucket string, quantity emtmodels.Quantity, n int, phases []emtmodels.Phase) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q%s)
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)`, bucket, string(quantity), phaseFilter(phases), n)
}

// buildAggregateQuery renders one of the three windowed sub-queries. fn is
// the store-side aggregate function name: "min", "mean" or "max". Windows
// without samples are dropped by the store (createEmpty: false).
func buildAggregateQuery(bucket string, quantity emtmodels.Quantity, start, end time.Time, phases []emtmodels.Phase, fn string) string {
	window := windowDuration(start, end)
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q%s)
  |> aggregateWindow(every: %dms, fn: %s, createEmpty: false)
  |> sort(columns: ["_time"])
  |> yield(name: %q)`, bucket, fluxTime(start), fluxTime(end), string(quantity), phaseFilter(phases),
		window.Milliseconds(), fn, fn)
}
