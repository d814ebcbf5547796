package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/school"
	"github.com/sekolah-app/sekolah/core/user"
)

var ErrNotFound = errors.Wrap(core.ErrNotFound, "schedule")

type (
	Repository interface {
		CreateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		// QuerySchedules returns schedules with joined names, ordered by day then start time.
		QuerySchedules(ctx context.Context, filter Filter) ([]Schedule, error)
		GetSchedule(ctx context.Context, id int64) (Schedule, error)
		// DeleteSchedule removes the schedule and the attendance recorded through it.
		DeleteSchedule(ctx context.Context, id int64) error
	}

	Service interface {
		Create(ctx context.Context, ns NewSchedule) (Schedule, error)
		Query(ctx context.Context, filter Filter) ([]Schedule, error)
		GetByID(ctx context.Context, id int64) (Schedule, error)
		Delete(ctx context.Context, id int64) error
		TodayForTeacher(ctx context.Context, teacherID int64) ([]Schedule, error)
	}

	service struct {
		repo      Repository
		schoolSvc school.Service
		usrSvc    user.Service
		loc       *time.Location
		nowFunc   func() time.Time
	}
)

var _ Service = (*service)(nil)

// NewService returns the schedule service; loc is the school's time zone used to resolve "today".
func NewService(repo Repository, schoolSvc school.Service, usrSvc user.Service, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:      repo,
		schoolSvc: schoolSvc,
		usrSvc:    usrSvc,
		loc:       loc,
		nowFunc:   time.Now,
	}
}

func (svc *service) Create(ctx context.Context, ns NewSchedule) (Schedule, error) {
	var flds []core.FieldError

	class, err := svc.schoolSvc.GetClass(ctx, ns.ClassID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return Schedule{}, errors.Wrap(err, "finding class")
		}
		flds = append(flds, core.FieldError{Field: "class_id", Error: "class not found"})
	}
	subject, err := svc.schoolSvc.GetSubject(ctx, ns.SubjectID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return Schedule{}, errors.Wrap(err, "finding subject")
		}
		flds = append(flds, core.FieldError{Field: "subject_id", Error: "subject not found"})
	}
	teacher, err := svc.usrSvc.GetByID(ctx, ns.TeacherID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return Schedule{}, errors.Wrap(err, "finding teacher")
		}
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: "teacher not found"})
	} else if !teacher.IsTeacher() {
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: "user is not a guru"})
	}
	if len(flds) > 0 {
		return Schedule{}, core.NewValidationError(nil, flds...)
	}

	s, err := svc.repo.CreateSchedule(ctx, Schedule{
		ClassID:   ns.ClassID,
		SubjectID: ns.SubjectID,
		TeacherID: ns.TeacherID,
		DayOfWeek: *ns.DayOfWeek,
		StartTime: ns.StartTime,
		EndTime:   ns.EndTime,
	})
	if err != nil {
		return Schedule{}, err
	}
	s.ClassName = class.Name
	s.SubjectName = subject.Name
	s.TeacherName = teacher.Name
	return s, nil
}

func (svc *service) Query(ctx context.Context, filter Filter) ([]Schedule, error) {
	return svc.repo.QuerySchedules(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id int64) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteSchedule(ctx, id)
}

func (svc *service) TodayForTeacher(ctx context.Context, teacherID int64) ([]Schedule, error) {
	day := int(svc.nowFunc().In(svc.loc).Weekday())
	return svc.repo.QuerySchedules(ctx, Filter{TeacherID: teacherID, Day: &day})
}
