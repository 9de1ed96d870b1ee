package models

import "time"

type User struct {
	ID             int64     `db:"id" json:"id"`
	GoogleID       string    `db:"google_id" json:"google_id"`
	Email          string    `db:"email" json:"email"`
	Name           string    `db:"name" json:"name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture"`
	Plan           string    `db:"plan" json:"plan"`
	TotalPosts     int       `db:"total_posts" json:"total_posts"`
	RemainingPosts int       `db:"remaining_posts" json:"remaining_posts"`
	CycleStart     time.Time `db:"cycle_start" json:"cycle_start"`
	CycleEnd       time.Time `db:"cycle_end" json:"cycle_end"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PlanNone         = "none"
	PlanStarter      = "starter"
	PlanGrowth       = "growth"
	PlanProfessional = "professional"
)

// Monthly post allocations per plan. Billing webhooks select from these
// on cycle renewal.
func PostsForPlan(plan string) int {
	switch plan {
	case PlanStarter:
		return 12
	case PlanGrowth:
		return 27
	case PlanProfessional:
		return 52
	default:
		return 0
	}
}
