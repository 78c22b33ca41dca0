package forecast

import (
	"math"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSumsPerYear(t *testing.T) {
	hist := dataset.Series{{2021, 10}, {2020, 5}, {2021, 20}, {2022, 30}}
	pred := dataset.Series{{2023, 12}, {2022, 14}, {2023, 13}, {2024, 20}}
	s, err := Build(hist, pred)
	require.NoError(t, err)
	assert.Equal(t, dataset.Series{{2020, 5}, {2021, 30}, {2022, 30}}, s.Actual)
	assert.Equal(t, dataset.Series{{2022, 14}, {2023, 25}, {2024, 20}}, s.Predicted)
	assert.Equal(t, []int{2022}, s.Overlap())
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, s.Years())

	sum := s.Summarize()
	assert.Equal(t, 2022, sum.LastActualYear)
	assert.Equal(t, 2024, sum.LastPredictedYear)
	assert.Equal(t, 2022, sum.FirstPredictedYear)
	assert.InDelta(t, (20.0-30.0)/30.0*100, sum.ChangePct, 1e-9)
	assert.True(t, sum.Declining)
	assert.Equal(t, 1, sum.OverlapYears)
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil, nil)
	assert.ErrorIs(t, err, ErrNoForecast)

	s, err := Build(dataset.Series{{2020, 1}}, nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.Summarize().ChangePct))
	assert.Equal(t, []int{2020}, s.Years())
}
