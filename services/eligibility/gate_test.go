package eligibility

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sample(views ...int64) map[int]int64 {
	m := make(map[int]int64, len(views))
	for i, v := range views {
		m[i+1] = v
	}
	return m
}

func TestSumGate(t *testing.T) {
	tests := []struct {
		name      string
		in        GateInput
		satisfied bool
		total     int64
	}{
		{
			name:      "subscribed paid-tier chapter",
			in:        GateInput{Subscribed: true, ChapterNumber: 6},
			satisfied: true,
		},
		{
			name: "subscribed sample chapter",
			in:   GateInput{Subscribed: true, ChapterNumber: 5},
		},
		{
			name:  "unsubscribed with 800 sample views",
			in:    GateInput{ChapterNumber: 6, SampleViews: sample(200, 200, 200, 100, 100)},
			total: 800,
		},
		{
			name:      "unsubscribed with exactly the requirement",
			in:        GateInput{ChapterNumber: 9, SampleViews: sample(1000, 0, 0, 0, 0)},
			satisfied: true,
			total:     1000,
		},
		{
			name:      "missing sample chapters still count the sum",
			in:        GateInput{ChapterNumber: 7, SampleViews: map[int]int64{1: 600, 3: 600}},
			satisfied: true,
			total:     1200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.FreeChapterThreshold = 5
			tt.in.FreeViewsRequirement = 1000
			if tt.in.SampleViews == nil {
				tt.in.SampleViews = map[int]int64{}
			}

			res := FreeSampleViewsGateSatisfied(tt.in, SumGate)
			require.Equal(t, tt.satisfied, res.Satisfied)
			require.Equal(t, tt.total, res.TotalFreeViews)
		})
	}
}

func TestMinGate(t *testing.T) {
	base := GateInput{FreeChapterThreshold: 5, FreeViewsRequirement: 1000}

	in := base
	in.SampleViews = sample(1000, 1000, 1000, 1000, 1000)
	require.True(t, FreeSampleViewsGateSatisfied(in, MinGate).Satisfied)

	in.SampleViews = sample(5000, 5000, 5000, 5000, 999)
	res := FreeSampleViewsGateSatisfied(in, MinGate)
	require.False(t, res.Satisfied)
	require.Equal(t, []int{5}, res.BelowRequirement)

	in.SampleViews = sample(1000, 1000, 1000, 1000)
	res = FreeSampleViewsGateSatisfied(in, MinGate)
	require.False(t, res.Satisfied)
	require.Equal(t, []int{5}, res.MissingChapters)

	in.Subscribed = true
	in.SampleViews = map[int]int64{}
	require.True(t, FreeSampleViewsGateSatisfied(in, MinGate).Satisfied)
}

// A novel can pass the earnings gate while failing the eligibility gate.
func TestGateModesDiverge(t *testing.T) {
	in := GateInput{
		ChapterNumber:        6,
		FreeChapterThreshold: 5,
		FreeViewsRequirement: 1000,
		SampleViews:          sample(4000, 10, 10, 10, 10),
	}

	require.True(t, FreeSampleViewsGateSatisfied(in, SumGate).Satisfied)
	require.False(t, FreeSampleViewsGateSatisfied(in, MinGate).Satisfied)
}
