package taskname

const (
	// Earnings tasks
	EarningRecord = "earning:record"
)
