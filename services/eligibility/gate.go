package eligibility

// GateMode selects how free sample views are judged for writers without a
// subscription.
type GateMode int

const (
	// SumGate is used when attributing earnings: the chapter must be past
	// the free sample and the sample chapters together must reach the
	// requirement.
	SumGate GateMode = iota
	// MinGate is used for novel-level reporting: every sample chapter must
	// exist and reach the requirement on its own.
	MinGate
)

func (m GateMode) String() string {
	if m == MinGate {
		return "min"
	}
	return "sum"
}

type GateInput struct {
	Subscribed           bool
	ChapterNumber        int
	FreeChapterThreshold int
	FreeViewsRequirement int64
	// SampleViews is viewCount keyed by chapter number for the sample
	// chapters that exist.
	SampleViews map[int]int64
}

type GateResult struct {
	Satisfied       bool
	TotalFreeViews  int64
	MissingChapters []int
	// BelowRequirement lists sample chapters under the per-chapter
	// requirement. Only filled in MinGate mode.
	BelowRequirement []int
}

// FreeSampleViewsGateSatisfied evaluates the free sample views gate shared by
// earnings attribution and eligibility reporting.
func FreeSampleViewsGateSatisfied(in GateInput, mode GateMode) GateResult {
	var res GateResult
	for n := 1; n <= in.FreeChapterThreshold; n++ {
		views, ok := in.SampleViews[n]
		if !ok {
			res.MissingChapters = append(res.MissingChapters, n)
			continue
		}
		res.TotalFreeViews += views
		if mode == MinGate && views < in.FreeViewsRequirement {
			res.BelowRequirement = append(res.BelowRequirement, n)
		}
	}

	switch mode {
	case SumGate:
		if in.ChapterNumber <= in.FreeChapterThreshold {
			return res
		}
		res.Satisfied = in.Subscribed || res.TotalFreeViews >= in.FreeViewsRequirement
	case MinGate:
		res.Satisfied = in.Subscribed || (len(res.MissingChapters) == 0 && len(res.BelowRequirement) == 0)
	}
	return res
}
