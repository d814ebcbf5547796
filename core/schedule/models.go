// Package schedule manages the weekly timetable: which guru teaches which subject to which class, and when.
package schedule

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/sekolah-app/sekolah/core"
)

// DayNames maps day_of_week to its Indonesian name; 0 is Sunday.
var DayNames = [7]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

var (
	timeOrderTag  = "timeorder"
	timeOrderText = "end_time must be after start_time"
)

type Schedule struct {
	ID          int64  `json:"id"`
	ClassID     int64  `json:"class_id"`
	SubjectID   int64  `json:"subject_id"`
	TeacherID   int64  `json:"teacher_id"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"` // HH:MM
	EndTime     string `json:"end_time"`   // HH:MM
	ClassName   string `json:"class_name,omitempty"`
	SubjectName string `json:"subject_name,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
}

type NewSchedule struct {
	ClassID   int64  `json:"class_id" validate:"required,gt=0"`
	SubjectID int64  `json:"subject_id" validate:"required,gt=0"`
	TeacherID int64  `json:"teacher_id" validate:"required,gt=0"`
	DayOfWeek *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.StartTime = core.CleanString(ns.StartTime)
	ns.EndTime = core.CleanString(ns.EndTime)
	return validate.Struct(ns)
}

// Filter narrows Query; zero values match everything.
type Filter struct {
	TeacherID int64 `query:"-"`
	ClassID   int64 `query:"class_id"`
	Day       *int  `query:"day"`
}

// InitValidators registers the schedule validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(scheduleStructValidation, NewSchedule{})
	core.RegisterCustomTranslation(validate, translator, timeOrderTag, timeOrderText)
}

// scheduleStructValidation checks that the lesson ends after it starts.
// HH:MM strings compare chronologically.
func scheduleStructValidation(sl validator.StructLevel) {
	ns := sl.Current().Interface().(NewSchedule)
	if ns.StartTime != "" && ns.EndTime != "" && ns.EndTime <= ns.StartTime {
		sl.ReportError(ns.EndTime, "end_time", "EndTime", timeOrderTag, "")
	}
}
