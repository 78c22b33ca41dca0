package metrics

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"

	"github.com/KaramelBytes/co2atlas/internal/emissions"
)

// Frame rows for the joins. Field names become column names, so the two
// sides of a join share only their key columns.
type (
	emissionObs struct {
		Name      string
		Code      string
		Emissions float64
	}
	populationObs struct {
		Name       string
		Population float64
	}
	gdpObs struct {
		Code         string
		Entity       string
		GDPPerCapita float64
	}
	gdpPopulationObs struct {
		Code       string
		Entity     string
		Population float64
	}
)

// Aggregated column names produced by gota's GroupBy.
const (
	colMeanGDP = "GDPPerCapita_MEAN"
	colMeanPop = "Population_MEAN"
)

// InnerJoin loads two slices of structs into DataFrames and inner-joins them on
// keys. Either side empty yields an empty frame with Nrow 0.
func InnerJoin(left, right any, keys ...string) (dataframe.DataFrame, error) {
	if isEmpty(left) || isEmpty(right) {
		return dataframe.DataFrame{}, nil
	}
	l := dataframe.LoadStructs(left)
	if l.Err != nil {
		return l, fmt.Errorf("load left frame: %w", l.Err)
	}
	r := dataframe.LoadStructs(right)
	if r.Err != nil {
		return r, fmt.Errorf("load right frame: %w", r.Err)
	}
	return joinFrames(l, r, keys...)
}

// JoinFrame inner-joins a frame with a slice of structs on keys.
func JoinFrame(l dataframe.DataFrame, right any, keys ...string) (dataframe.DataFrame, error) {
	if l.Nrow() == 0 || isEmpty(right) {
		return dataframe.DataFrame{}, nil
	}
	r := dataframe.LoadStructs(right)
	if r.Err != nil {
		return r, fmt.Errorf("load right frame: %w", r.Err)
	}
	return joinFrames(l, r, keys...)
}

func joinFrames(l, r dataframe.DataFrame, keys ...string) (dataframe.DataFrame, error) {
	if l.Nrow() == 0 || r.Nrow() == 0 {
		return dataframe.DataFrame{}, nil
	}
	j := l.InnerJoin(r, keys...)
	if j.Err != nil {
		return j, fmt.Errorf("join on %v: %w", keys, j.Err)
	}
	return j, nil
}

// GroupMean averages cols of rows grouped by keys; the result columns are
// named "<col>_MEAN".
func GroupMean(rows any, keys []string, cols ...string) (dataframe.DataFrame, error) {
	if isEmpty(rows) {
		return dataframe.DataFrame{}, nil
	}
	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return df, fmt.Errorf("load frame: %w", df.Err)
	}
	g := df.GroupBy(keys...)
	if g.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("group by %v: %w", keys, g.Err)
	}
	typs := make([]dataframe.AggregationType, len(cols))
	for i := range typs {
		typs[i] = dataframe.Aggregation_MEAN
	}
	out := g.Aggregation(typs, cols)
	if out.Err != nil {
		return out, fmt.Errorf("aggregate %v: %w", cols, out.Err)
	}
	return out, nil
}

func isEmpty(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Slice && rv.Len() == 0)
}

// emissionObservations returns the rows of t with a finite value in year.
func emissionObservations(t *emissions.Table, year int) []emissionObs {
	var out []emissionObs
	for _, r := range t.Rows {
		if v := r.At(year); !math.IsNaN(v) {
			out = append(out, emissionObs{Name: r.Name, Code: r.Code, Emissions: v})
		}
	}
	return out
}

// LogJoin records the row and match counts of a join at debug level.
func LogJoin(log *zap.Logger, join string, left, matched int, fields ...zap.Field) {
	log.Debug("join",
		append([]zap.Field{
			zap.String("join", join),
			zap.Int("rows", left),
			zap.Int("matched", matched),
			zap.Int("unmatched", left-matched),
		}, fields...)...)
}
