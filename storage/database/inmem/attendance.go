package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/user"
)

type attendanceRepository struct {
	db *DB

	nowFunc func() time.Time
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db, nowFunc: func() time.Time { return time.Now().UTC() }}
}

func (repo *attendanceRepository) ClassStudents(_ context.Context, classID int64) ([]attendance.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]attendance.Student, 0)
	for id, p := range repo.db.profiles {
		usr, ok := repo.db.users[id]
		if !ok || usr.Role != user.RoleStudent || p.ClassID == nil || *p.ClassID != classID {
			continue
		}
		students = append(students, attendance.Student{ID: id, Name: usr.Name, NISN: p.NISN})
	}
	sort.Slice(students, func(i, j int) bool {
		a, b := strings.ToLower(students[i].Name), strings.ToLower(students[j].Name)
		if a != b {
			return a < b
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, studentIDs []int64, from, to time.Time) ([]attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	wanted := make(map[int64]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	from, to = core.TruncateDay(from), core.TruncateDay(to)

	res := make([]attendance.Record, 0)
	for _, r := range repo.db.records {
		if wanted[r.StudentID] && !r.Date.Before(from) && r.Date.Before(to) {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.Before(res[j].Date)
		}
		return res[i].StudentID < res[j].StudentID
	})
	return res, nil
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, records []attendance.Record) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// check the foreign keys of the whole batch before writing
	for _, r := range records {
		if _, ok := repo.db.users[r.StudentID]; !ok {
			return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student not found"})
		}
		if _, ok := repo.db.classes[r.ClassID]; !ok {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
		}
		if r.ScheduleID != nil {
			if _, ok := repo.db.schedules[*r.ScheduleID]; !ok {
				return core.NewValidationError(nil, core.FieldError{Field: "schedule_id", Error: "schedule not found"})
			}
		}
	}

	now := repo.nowFunc()
	for _, r := range records {
		r.Date = core.TruncateDay(r.Date)
		if id, ok := repo.find(r.StudentID, r.Date); ok {
			existing := repo.db.records[id]
			existing.Status = r.Status
			existing.ScheduleID = r.ScheduleID
			existing.RecordedBy = r.RecordedBy
			existing.UpdatedAt = now
			repo.db.records[id] = existing
			continue
		}
		r.ID = repo.db.nextID()
		r.CreatedAt = now
		r.UpdatedAt = now
		repo.db.records[r.ID] = r
	}
	return nil
}

// find looks up the (student_id, date) unique key. Lock held.
func (repo *attendanceRepository) find(studentID int64, date time.Time) (int64, bool) {
	for id, r := range repo.db.records {
		if r.StudentID == studentID && r.Date.Equal(date) {
			return id, true
		}
	}
	return 0, false
}
