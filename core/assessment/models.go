package assessment

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/volatiletech/null/v8"
)

// DefaultMaxScore is the max score of grades synced from the student log.
const DefaultMaxScore = 10.0

// Assessment is a scheduled test ("verifica") of a Black student.
type Assessment struct {
	ID                string      `json:"id"`
	StudentID         string      `json:"student_id"`
	Subject           null.String `json:"subject"`
	Topics            null.String `json:"topics"`
	WhenAt            civil.Date  `json:"when_at"`
	ReadinessSnapshot null.Int    `json:"readiness_snapshot"` // filled from the student on create when unset
	CreatedAt         time.Time   `json:"created_at"`         // UTC
	UpdatedAt         time.Time   `json:"updated_at"`         // UTC
}

// Grade is an outcome recorded against a Black student.
type Grade struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"student_id"`
	AssessmentID null.String `json:"assessment_id"`
	Subject      null.String `json:"subject"`
	Score        float64     `json:"score"`
	MaxScore     float64     `json:"max_score"`
	WhenAt       civil.Date  `json:"when_at"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
}

// ExamLink identifies the assessment mirroring a student's exam.
// AssessmentID wins when set; Date is the fallback.
type ExamLink struct {
	AssessmentID string
	Date         civil.Date
}

// Identity designates a student either directly or through their auth UID.
type Identity struct {
	StudentID string
	UID       string
}

// GradeSync is the input of Service.SyncGrade.
type GradeSync struct {
	Identity     Identity
	Date         civil.Date
	Subject      string
	Grade        float64
	AssessmentID string // hint
	ExamSubject  string // fallback subject, also used to break ties between same-day assessments
}

type GradeSyncResult struct {
	StudentID    string
	GradeID      string // empty if the insert failed
	AssessmentID string // empty if no assessment matched
}

func isZeroDate(d civil.Date) bool {
	return d == civil.Date{}
}
