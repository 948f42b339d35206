package student

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/theoremz/black/core"
)

var (
	// errors
	ErrNotFound    = errors.New("student not found")
	ErrUIDTaken    = errors.New("a student with this uid already exists")
	ErrInvalidRisk = errors.New("invalid risk level")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		GetStudentByUID(ctx context.Context, uid string, exec ...core.DBExecutor) (Student, error)
		// ListReadiness returns every student's current readiness.
		ListReadiness(ctx context.Context, exec ...core.DBExecutor) ([]Readiness, error)
		// SetReadiness writes the given values and stamps them with `at`. Returns the number of rows updated.
		SetReadiness(ctx context.Context, batch []Readiness, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	// Cache memoizes UID -> student id lookups. An empty studentID records a known miss.
	Cache interface {
		Get(ctx context.Context, uid string) (studentID string, found bool, err error)
		Set(ctx context.Context, uid, studentID string, ttl time.Duration) error
		Delete(ctx context.Context, uid string) error
	}
)

// Directory resolves auth UIDs to Black students through a Cache.
// Hits are kept for PositiveTTL, misses for NegativeTTL.
type Directory struct {
	repo        Repository
	cache       Cache
	positiveTTL time.Duration
	negativeTTL time.Duration
	logger      core.Logger
}

func NewDirectory(repo Repository, cache Cache, conf core.CacheConfig, logger core.Logger) *Directory {
	return &Directory{
		repo:        repo,
		cache:       cache,
		positiveTTL: conf.PositiveTTL,
		negativeTTL: conf.NegativeTTL,
		logger:      logger,
	}
}

// StudentIDForUID returns ErrNotFound when uid has no Black student.
func (d *Directory) StudentIDForUID(ctx context.Context, uid string) (string, error) {
	uid = core.CleanString(uid)
	if uid == "" {
		return "", ErrNotFound
	}

	if d.cache != nil {
		id, found, err := d.cache.Get(ctx, uid)
		if err != nil {
			d.logger.Warn(fmt.Sprintf("student cache get: %v", err), err)
		} else if found {
			if id == "" {
				return "", ErrNotFound
			}
			return id, nil
		}
	}

	var id string
	ttl := d.positiveTTL
	s, err := d.repo.GetStudentByUID(ctx, uid)
	switch {
	case err == nil:
		id = s.ID
	case errors.Is(err, ErrNotFound):
		ttl = d.negativeTTL
	default:
		return "", err
	}

	if d.cache != nil && ttl > 0 {
		if cErr := d.cache.Set(ctx, uid, id, ttl); cErr != nil {
			d.logger.Warn(fmt.Sprintf("student cache set: %v", cErr), cErr)
		}
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

// Forget drops any cached lookup for uid.
func (d *Directory) Forget(ctx context.Context, uid string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, core.CleanString(uid)); err != nil {
		d.logger.Warn(fmt.Sprintf("student cache delete: %v", err), err)
	}
}

// NewStudent contains information needed to onboard a Black student.
type NewStudent struct {
	Name      string `json:"name" validate:"required,notblank"`
	UID       string `json:"uid"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	Track     string `json:"track"`
	RiskLevel string `json:"risk_level"`
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.UID = core.CleanString(ns.UID)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Track = core.CleanString(ns.Track)
	ns.RiskLevel = core.CleanString(ns.RiskLevel, true /* lower */)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Clean()
	if ns.RiskLevel != "" && !IsRiskLevel(ns.RiskLevel) {
		return core.NewValidationError(ErrInvalidRisk, core.FieldError{Field: "risk_level", Error: "must be one of: red, yellow, green"})
	}
	return validate.Struct(ns)
}
