package attendance

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/auth"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/user"
)

type (
	Repository interface {
		// ClassStudents returns the siswa whose profile points at classID, ordered by name.
		ClassStudents(ctx context.Context, classID int64) ([]Student, error)
		// QueryRecords returns the records of studentIDs with from <= date < to.
		QueryRecords(ctx context.Context, studentIDs []int64, from, to time.Time) ([]Record, error)
		// UpsertRecords inserts every record or, on (student_id, date) conflict, overwrites
		// status, recorded_by and updated_at. All or nothing.
		UpsertRecords(ctx context.Context, records []Record) error
	}

	Service interface {
		Record(ctx context.Context, req RecordRequest, actor auth.Identity) error
		ClassRoster(ctx context.Context, classID int64, date time.Time) ([]RosterEntry, error)
		ScheduleRoster(ctx context.Context, scheduleID int64, date time.Time, actor auth.Identity) ([]RosterEntry, error)
		Summary(ctx context.Context, classID int64, month, year int) ([]StudentSummary, error)
		ExportSummary(ctx context.Context, w io.Writer, classID int64, month, year int) error
		// Today returns the current calendar day in the school time zone.
		Today() time.Time
	}

	service struct {
		repo        Repository
		scheduleSvc schedule.Service
		loc         *time.Location
		nowFunc     func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, scheduleSvc schedule.Service, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:        repo,
		scheduleSvc: scheduleSvc,
		loc:         loc,
		nowFunc:     time.Now,
	}
}

func (svc *service) Today() time.Time {
	return core.TruncateDay(svc.nowFunc().In(svc.loc))
}

func (svc *service) Record(ctx context.Context, req RecordRequest, actor auth.Identity) error {
	classID := req.ClassID

	var sched *schedule.Schedule
	if req.ScheduleID > 0 {
		s, err := svc.scheduleSvc.GetByID(ctx, req.ScheduleID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.NewValidationError(nil, core.FieldError{Field: "schedule_id", Error: "schedule not found"})
			}
			return errors.Wrap(err, "finding schedule")
		}
		if classID != 0 && classID != s.ClassID {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class does not match the schedule"})
		}
		classID = s.ClassID
		sched = &s
	}

	if err := authorize(actor, sched); err != nil {
		return err
	}

	date := svc.Today()
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "date", Error: "date must be in YYYY-MM-DD format"})
		}
		date = d
	}

	students, err := svc.repo.ClassStudents(ctx, classID)
	if err != nil {
		return errors.Wrap(err, "querying class students")
	}
	members := make(map[int64]bool, len(students))
	for _, s := range students {
		members[s.ID] = true
	}

	var flds []core.FieldError
	records := make([]Record, 0, len(req.Records))
	for i, e := range req.Records {
		if !members[e.StudentID] {
			flds = append(flds, core.FieldError{
				Field: "records[" + strconv.Itoa(i) + "].student_id",
				Error: "student is not in this class",
			})
			continue
		}
		rec := Record{
			StudentID:  e.StudentID,
			ClassID:    classID,
			Date:       date,
			Status:     e.Status,
			RecordedBy: actor.ID,
		}
		if sched != nil {
			id := sched.ID
			rec.ScheduleID = &id
		}
		records = append(records, rec)
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	return errors.Wrap(svc.repo.UpsertRecords(ctx, records), "saving attendance")
}

// authorize lets admins record anything and a guru only through a schedule they teach.
func authorize(actor auth.Identity, sched *schedule.Schedule) error {
	switch actor.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleTeacher:
		if sched != nil && sched.TeacherID == actor.ID {
			return nil
		}
	}
	return core.ErrForbidden
}

func (svc *service) ClassRoster(ctx context.Context, classID int64, date time.Time) ([]RosterEntry, error) {
	students, err := svc.repo.ClassStudents(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	roster := make([]RosterEntry, 0, len(students))
	if len(students) == 0 {
		return roster, nil
	}

	day := core.TruncateDay(date)
	records, err := svc.repo.QueryRecords(ctx, studentIDs(students), day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	statuses := make(map[int64]Status, len(records))
	for _, r := range records {
		if r.ClassID != classID {
			continue
		}
		statuses[r.StudentID] = r.Status
	}

	for _, s := range students {
		entry := RosterEntry{ID: s.ID, Name: s.Name, NISN: s.NISN}
		if st, ok := statuses[s.ID]; ok {
			st := st
			entry.Status = &st
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

func (svc *service) ScheduleRoster(ctx context.Context, scheduleID int64, date time.Time, actor auth.Identity) ([]RosterEntry, error) {
	s, err := svc.scheduleSvc.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if err = authorize(actor, &s); err != nil {
		return nil, err
	}
	return svc.ClassRoster(ctx, s.ClassID, date)
}

func (svc *service) Summary(ctx context.Context, classID int64, month, year int) ([]StudentSummary, error) {
	if err := checkMonth(month, year); err != nil {
		return nil, err
	}

	students, err := svc.repo.ClassStudents(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	summary := make([]StudentSummary, 0, len(students))
	if len(students) == 0 {
		return summary, nil
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	records, err := svc.repo.QueryRecords(ctx, studentIDs(students), from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}

	byStudent := make(map[int64][]Record, len(students))
	for _, r := range records {
		if r.ClassID != classID {
			continue // taken before the student changed class
		}
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}
	for _, s := range students {
		ss := StudentSummary{
			StudentID:   s.ID,
			StudentName: s.Name,
			NISN:        s.NISN,
			Records:     make(map[string]Status),
			Totals:      make(map[Status]int, len(Statuses)),
		}
		for _, st := range Statuses {
			ss.Totals[st] = 0
		}
		for _, r := range byStudent[s.ID] {
			ss.Records[r.Date.Format(core.DateLayout)] = r.Status
			ss.Totals[r.Status]++
		}
		summary = append(summary, ss)
	}
	return summary, nil
}

func checkMonth(month, year int) error {
	var flds []core.FieldError
	if month < 1 || month > 12 {
		flds = append(flds, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	if year < 1900 || year > 9999 {
		flds = append(flds, core.FieldError{Field: "year", Error: "year must be between 1900 and 9999"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func studentIDs(students []Student) []int64 {
	ids := make([]int64, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}
