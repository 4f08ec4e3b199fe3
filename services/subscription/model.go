package subscription

import "time"

const StatusActive = "active"

type WriterSubscription struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	WriterID              string    `gorm:"column:writer_id;uniqueIndex"`
	PlanCode              string    `gorm:"column:plan_code"`
	Status                string    `gorm:"column:status"`
	PlatformFeePercentage *int      `gorm:"column:platform_fee_percentage"`
	ExpiresAt             time.Time `gorm:"column:expires_at"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (WriterSubscription) TableName() string { return "writer_subscriptions" }

// Status is a writer's subscription as seen by the earnings engine.
type Status struct {
	Status    string
	ExpiresAt time.Time
	// PlatformFeePercentage is nil when the plan keeps the default fee.
	PlatformFeePercentage *int
}

// Active is true only for an active status that has not yet expired.
func (s Status) Active(now time.Time) bool {
	return s.Status == StatusActive && s.ExpiresAt.After(now)
}
