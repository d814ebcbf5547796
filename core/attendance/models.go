// Package attendance records daily student attendance and builds the monthly recap.
package attendance

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/sekolah-app/sekolah/core"
)

type Status string

// Statuses
const (
	StatusPresent Status = "Hadir"
	StatusSick    Status = "Sakit"
	StatusExcused Status = "Izin"
	StatusAbsent  Status = "Alfa"
)

var (
	Statuses = []Status{StatusPresent, StatusSick, StatusExcused, StatusAbsent}

	statusTag  = "status"
	statusText = "{0} must be one of Hadir, Sakit, Izin or Alfa"

	duplicateStudentTag  = "nodupstudent"
	duplicateStudentText = "student appears more than once"

	requiredUnlessScheduleTag  = "required_without_schedule"
	requiredUnlessScheduleText = "{0} is required when schedule_id is not given"
)

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Abbrev returns the one letter code used in the recap sheet (H, S, I, A).
func (s Status) Abbrev() string {
	if s == "" {
		return ""
	}
	return string(s[0])
}

// Entry is one student's status inside a RecordRequest.
type Entry struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Status    Status `json:"status" validate:"required,status"`
}

// RecordRequest is a batch of statuses for one class on one day.
// With ScheduleID, ClassID is taken from the schedule and Date defaults to today.
type RecordRequest struct {
	ClassID    int64   `json:"class_id" validate:"omitempty,gt=0"`
	ScheduleID int64   `json:"schedule_id" validate:"omitempty,gt=0"`
	Date       string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Records    []Entry `json:"records" validate:"required,min=1,max=1000,dive"`
}

func (rr *RecordRequest) Validate(validate *validator.Validate) error {
	rr.Date = core.CleanString(rr.Date)
	return validate.Struct(rr)
}

// Record is a stored attendance row, unique per (StudentID, Date).
type Record struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"student_id"`
	ClassID    int64     `json:"class_id"`
	ScheduleID *int64    `json:"schedule_id"`
	Date       time.Time `json:"date"`
	Status     Status    `json:"status"`
	RecordedBy int64     `json:"recorded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Student is a member of a class as seen by attendance.
type Student struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	NISN string `json:"nisn,omitempty"`
}

// RosterEntry is a student with the status recorded for one day, or nil.
type RosterEntry struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	NISN   string  `json:"nisn,omitempty"`
	Status *Status `json:"status"`
}

// StudentSummary is a student's month: date (YYYY-MM-DD) -> status, plus totals.
// Days without a record are absent from Records.
type StudentSummary struct {
	StudentID   int64             `json:"student_id"`
	StudentName string            `json:"student_name"`
	NISN        string            `json:"nisn,omitempty"`
	Records     map[string]Status `json:"records"`
	Totals      map[Status]int    `json:"totals"`
}

// SummaryQuery selects a class and month.
type SummaryQuery struct {
	ClassID int64 `json:"class_id" query:"class_id" validate:"required,gt=0"`
	Month   int   `json:"month" query:"month" validate:"required,min=1,max=12"`
	Year    int   `json:"year" query:"year" validate:"required,min=1900,max=9999"`
}

func (sq *SummaryQuery) Validate(validate *validator.Validate) error {
	return validate.Struct(sq)
}

// InitValidators registers the attendance validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(recordRequestStructValidation, RecordRequest{})
	core.RegisterCustomTranslation(validate, translator, duplicateStudentTag, duplicateStudentText)
	core.RegisterCustomTranslation(validate, translator, requiredUnlessScheduleTag, requiredUnlessScheduleText)
}

// recordRequestStructValidation requires class_id and date unless a schedule is given,
// and rejects a student listed twice.
func recordRequestStructValidation(sl validator.StructLevel) {
	rr := sl.Current().Interface().(RecordRequest)
	if rr.ScheduleID == 0 {
		if rr.ClassID == 0 {
			sl.ReportError(rr.ClassID, "class_id", "ClassID", requiredUnlessScheduleTag, "")
		}
		if rr.Date == "" {
			sl.ReportError(rr.Date, "date", "Date", requiredUnlessScheduleTag, "")
		}
	}

	seen := make(map[int64]bool, len(rr.Records))
	for _, e := range rr.Records {
		if seen[e.StudentID] {
			sl.ReportError(rr.Records, "records", "Records", duplicateStudentTag, "")
			return
		}
		seen[e.StudentID] = true
	}
}
