package inmemdb

import (
	"context"
	"sort"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

// withNames fills the joined columns. Read lock held.
func (repo *scheduleRepository) withNames(s schedule.Schedule) schedule.Schedule {
	s.ClassName = repo.db.classes[s.ClassID].Name
	s.SubjectName = repo.db.subjects[s.SubjectID].Name
	s.TeacherName = repo.db.users[s.TeacherID].Name
	return s
}

func (repo *scheduleRepository) CreateSchedule(_ context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var flds []core.FieldError
	if _, ok := repo.db.classes[s.ClassID]; !ok {
		flds = append(flds, core.FieldError{Field: "class_id", Error: "class not found"})
	}
	if _, ok := repo.db.subjects[s.SubjectID]; !ok {
		flds = append(flds, core.FieldError{Field: "subject_id", Error: "subject not found"})
	}
	if _, ok := repo.db.users[s.TeacherID]; !ok {
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: "teacher not found"})
	}
	if len(flds) > 0 {
		return schedule.Schedule{}, core.NewValidationError(nil, flds...)
	}

	s.ID = repo.db.nextID()
	s.ClassName, s.SubjectName, s.TeacherName = "", "", ""
	repo.db.schedules[s.ID] = s
	return repo.withNames(s), nil
}

func (repo *scheduleRepository) QuerySchedules(_ context.Context, filter schedule.Filter) ([]schedule.Schedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]schedule.Schedule, 0)
	for _, s := range repo.db.schedules {
		if filter.TeacherID != 0 && s.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ClassID != 0 && s.ClassID != filter.ClassID {
			continue
		}
		if filter.Day != nil && s.DayOfWeek != *filter.Day {
			continue
		}
		res = append(res, repo.withNames(s))
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].DayOfWeek != res[j].DayOfWeek {
			return res[i].DayOfWeek < res[j].DayOfWeek
		}
		if res[i].StartTime != res[j].StartTime {
			return res[i].StartTime < res[j].StartTime
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (repo *scheduleRepository) GetSchedule(_ context.Context, id int64) (schedule.Schedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.schedules[id]; ok {
		return repo.withNames(s), nil
	}
	return schedule.Schedule{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) DeleteSchedule(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.schedules[id]; !ok {
		return schedule.ErrNotFound
	}
	repo.db.deleteScheduleCascade(id)
	return nil
}
