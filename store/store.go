// Package store is the tenant-scoped persistence layer. Every read and
// write goes through it with an explicit school id; handlers and engines
// never touch *gorm.DB directly, so a query that forgets its tenant
// cannot be written.
package store

import (
	"errors"
	"reflect"
	"sync"

	"gorm.io/gorm"

	"lomda/models"
)

var ErrMissingSchool = errors.New("missing school id")

// Scoped is the persistence contract the engines depend on. *Store is
// the gorm implementation; tests substitute fakes.
type Scoped interface {
	Filter(dest interface{}, schoolID uint, match map[string]interface{}, sort string, limit int) error
	First(dest interface{}, schoolID uint, match map[string]interface{}) (bool, error)
	Create(schoolID uint, value interface{}) error
	Update(model interface{}, id, schoolID uint, fields map[string]interface{}, enforceOwnership bool) error
	Delete(model interface{}, id, schoolID uint, enforceOwnership bool) error
	Transaction(fn func(Scoped) error) error
	SupportsQuizQuestions() bool
}

type Store struct {
	DB *gorm.DB

	probeOnce        sync.Once
	hasQuizQuestions bool
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Filter lists records for one school. The school clause is appended
// here, not by callers, so cross-tenant rows are unreachable even when
// match omits the tenant.
func (s *Store) Filter(dest interface{}, schoolID uint, match map[string]interface{}, sort string, limit int) error {
	if schoolID == 0 {
		return ErrMissingSchool
	}
	q := s.DB.Where("school_id = ?", schoolID)
	if len(match) > 0 {
		q = q.Where(match)
	}
	if sort != "" {
		q = q.Order(sort)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q.Find(dest).Error
}

// First fetches a single record; a missing row is (false, nil), not an
// error, so absence never masquerades as an I/O failure.
func (s *Store) First(dest interface{}, schoolID uint, match map[string]interface{}) (bool, error) {
	if schoolID == 0 {
		return false, ErrMissingSchool
	}
	q := s.DB.Where("school_id = ?", schoolID)
	if len(match) > 0 {
		q = q.Where(match)
	}
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create stamps the school id onto the record before inserting,
// overriding whatever the caller set.
func (s *Store) Create(schoolID uint, value interface{}) error {
	if schoolID == 0 {
		return ErrMissingSchool
	}
	stampSchool(value, schoolID)
	return s.DB.Create(value).Error
}

func (s *Store) Update(model interface{}, id, schoolID uint, fields map[string]interface{}, enforceOwnership bool) error {
	if schoolID == 0 {
		return ErrMissingSchool
	}
	q := s.DB.Model(model).Where("id = ?", id)
	if enforceOwnership {
		q = q.Where("school_id = ?", schoolID)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) Delete(model interface{}, id, schoolID uint, enforceOwnership bool) error {
	if schoolID == 0 {
		return ErrMissingSchool
	}
	q := s.DB.Where("id = ?", id)
	if enforceOwnership {
		q = q.Where("school_id = ?", schoolID)
	}
	return q.Delete(model).Error
}

// Transaction runs fn against a store bound to one transaction.
func (s *Store) Transaction(fn func(Scoped) error) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		scoped := &Store{DB: tx, hasQuizQuestions: s.SupportsQuizQuestions()}
		scoped.probeOnce.Do(func() {})
		return fn(scoped)
	})
}

// SupportsQuizQuestions probes whether the normalized question table
// exists in this deployment. Probed once; the answer cannot change while
// the process runs.
func (s *Store) SupportsQuizQuestions() bool {
	s.probeOnce.Do(func() {
		s.hasQuizQuestions = s.DB.Migrator().HasTable(&models.QuizQuestion{})
	})
	return s.hasQuizQuestions
}

func stampSchool(value interface{}, schoolID uint) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	field := rv.Elem().FieldByName("SchoolID")
	if field.IsValid() && field.CanSet() && field.Kind() == reflect.Uint {
		field.SetUint(uint64(schoolID))
	}
}
