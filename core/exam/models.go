package exam

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
)

// Exam is an entry in a student's own exam log.
type Exam struct {
	ID           string       `json:"id"`
	UserID       string       `json:"-"`
	Date         civil.Date   `json:"date"`
	Subject      null.String  `json:"subject"`
	Notes        null.String  `json:"notes"`
	Grade        null.Float64 `json:"grade"`
	GradeSubject null.String  `json:"grade_subject"`
	AssessmentID null.String  `json:"black_assessment_id"`
	CreatedAt    time.Time    `json:"created_at"` // UTC
	UpdatedAt    time.Time    `json:"updated_at"` // UTC
}

func (e Exam) IsGraded() bool { return e.Grade.Valid }

// Grade is an entry in a student's own grade log, optionally tied to an Exam.
type Grade struct {
	ID        string      `json:"id"`
	UserID    string      `json:"-"`
	ExamID    null.String `json:"exam_id"`
	Date      civil.Date  `json:"date"`
	Subject   null.String `json:"subject"`
	Grade     float64     `json:"grade"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

// NewExam contains information needed to create (or, given an ID, edit) an exam.
type NewExam struct {
	ID      string `json:"id" validate:"omitempty,uuid"`
	Date    string `json:"date" validate:"omitempty,isodate"`
	Subject string `json:"subject" validate:"max=120"`
	Notes   string `json:"notes" validate:"max=4000"`
}

func (ne *NewExam) Clean() {
	ne.ID = core.CleanString(ne.ID, true /* lower */)
	ne.Date = core.CleanString(ne.Date)
	ne.Subject = core.CleanString(ne.Subject)
	ne.Notes = strings.TrimSpace(ne.Notes)
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Clean()
	if ne.Date == "" {
		return ErrMissingDate
	}
	return validate.Struct(ne)
}

// ExamGrade contains information needed to grade an exam.
type ExamGrade struct {
	Grade   Score  `json:"grade"`
	Subject string `json:"subject" validate:"max=120"`
}

func (eg *ExamGrade) Validate(validate *validator.Validate) error {
	eg.Subject = core.CleanString(eg.Subject)
	if !eg.Grade.Valid() {
		return ErrInvalidGrade
	}
	return validate.Struct(eg)
}

// NewGrade contains information needed to record a standalone grade.
type NewGrade struct {
	Date    string `json:"date" validate:"omitempty,isodate"`
	Subject string `json:"subject" validate:"max=120"`
	Grade   Score  `json:"grade"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Date = core.CleanString(ng.Date)
	ng.Subject = core.CleanString(ng.Subject)
	if ng.Date == "" {
		return ErrMissingDate
	}
	if !ng.Grade.Valid() {
		return ErrInvalidGrade
	}
	return validate.Struct(ng)
}

// Score is a grade as sent by clients: a JSON number or a numeric string, with either
// a dot or a comma as decimal separator ("7.5", "7,5").
type Score struct {
	value float64
	valid bool
}

func ScoreFrom(v float64) Score {
	return Score{value: v, valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func (s Score) Valid() bool      { return s.valid }
func (s Score) Float64() float64 { return s.value }

func (s *Score) UnmarshalJSON(data []byte) error {
	*s = Score{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		raw = strings.ReplaceAll(strings.TrimSpace(str), ",", ".")
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		*s = ScoreFrom(v)
	}
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(s.value, 'f', -1, 64)), nil
}
