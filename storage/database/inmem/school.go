package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) QueryClasses(context.Context) ([]school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return strings.ToLower(classes[i].Name) < strings.ToLower(classes[j].Name) })
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id int64) (school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return c, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) CreateClass(_ context.Context, name string) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.classes {
		if c.Name == name {
			return school.Class{}, core.NewConflictError("name", nil)
		}
	}
	c := school.Class{ID: repo.db.nextID(), Name: name}
	repo.db.classes[c.ID] = c
	return c, nil
}

func (repo *schoolRepository) DeleteClass(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return school.ErrClassNotFound
	}
	repo.db.deleteClassCascade(id)
	return nil
}

func (repo *schoolRepository) QuerySubjects(context.Context) ([]school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]school.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool { return strings.ToLower(subjects[i].Name) < strings.ToLower(subjects[j].Name) })
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, id int64) (school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return s, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) CreateSubject(_ context.Context, name string) (school.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range repo.db.subjects {
		if s.Name == name {
			return school.Subject{}, core.NewConflictError("name", nil)
		}
	}
	s := school.Subject{ID: repo.db.nextID(), Name: name}
	repo.db.subjects[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) DeleteSubject(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return school.ErrSubjectNotFound
	}
	delete(repo.db.subjects, id)
	for sid, s := range repo.db.schedules {
		if s.SubjectID == id {
			repo.db.deleteScheduleCascade(sid)
		}
	}
	return nil
}
