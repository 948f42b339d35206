package student

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Risk levels
const (
	RiskRed    = "red"
	RiskYellow = "yellow"
	RiskGreen  = "green"
)

// Readiness bounds
const (
	MinReadiness = 0
	MaxReadiness = 100
)

var RiskLevels = []string{RiskRed, RiskYellow, RiskGreen}

// Student is a Black tutoring subscriber.
type Student struct {
	ID                 string      `json:"id"`
	UID                null.String `json:"uid"` // firebase auth user
	Name               string      `json:"name"`
	Email              null.String `json:"email"`
	Phone              null.String `json:"phone"`
	Track              null.String `json:"track"`
	Readiness          int         `json:"readiness"`
	RiskLevel          null.String `json:"risk_level"`
	ReadinessUpdatedAt null.Time   `json:"readiness_updated_at"` // UTC
	CreatedAt          time.Time   `json:"created_at"`           // UTC
	UpdatedAt          time.Time   `json:"updated_at"`           // UTC
}

// Readiness is a student's readiness score, as read or written by batch jobs.
type Readiness struct {
	StudentID string
	Value     int
}

// ClampReadiness keeps v within [MinReadiness, MaxReadiness].
func ClampReadiness(v int) int {
	if v < MinReadiness {
		return MinReadiness
	}
	if v > MaxReadiness {
		return MaxReadiness
	}
	return v
}

func IsRiskLevel(level string) bool {
	for _, l := range RiskLevels {
		if l == level {
			return true
		}
	}
	return false
}
