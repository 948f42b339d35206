package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
	"github.com/theoremz/black/core/exam"
	"github.com/theoremz/black/core/student"
)

// DB is an in-memory stand-in for the Postgres database, used by the "memory" engine and tests.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	students    []student.Student
	assessments []assessment.Assessment
	grades      []assessment.Grade
	briefs      map[string]int // student id -> refresh count
	exams       []exam.Exam
	examGrades  []exam.Grade
}

type tables struct {
	students    []student.Student
	assessments []assessment.Assessment
	grades      []assessment.Grade
	exams       []exam.Exam
	examGrades  []exam.Grade
}

var _ core.TxRunner = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{briefs: make(map[string]int)}
}

func (db *DB) snapshot() tables {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return tables{
		students:    append([]student.Student(nil), db.students...),
		assessments: append([]assessment.Assessment(nil), db.assessments...),
		grades:      append([]assessment.Grade(nil), db.grades...),
		exams:       append([]exam.Exam(nil), db.exams...),
		examGrades:  append([]exam.Grade(nil), db.examGrades...),
	}
}

func (db *DB) restore(t tables) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students = t.students
	db.assessments = t.assessments
	db.grades = t.grades
	db.exams = t.exams
	db.examGrades = t.examGrades
}

// RunInTx runs transactions one at a time. A failing fn restores the tables as they were before it ran,
// including writes other goroutines made meanwhile outside of a transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.restore(snap)
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		db.restore(snap)
	}
	return err
}

// Assessments returns a copy of all assessments in store order.
func (db *DB) Assessments() []assessment.Assessment {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]assessment.Assessment(nil), db.assessments...)
}

// Grades returns a copy of all Black grades in store order.
func (db *DB) Grades() []assessment.Grade {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]assessment.Grade(nil), db.grades...)
}

// BriefRefreshes counts the brief refreshes of a student.
func (db *DB) BriefRefreshes(studentID string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.briefs[studentID]
}

// storeOrder sorts by (created_at, id), like the postgres repositories.
func storeOrder[T any](items []T, createdAt func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := createdAt(items[i]), createdAt(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}

func newestFirst[T any](items []T, date func(T) string, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := date(items[i]), date(items[j])
		if di != dj {
			return di > dj
		}
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
