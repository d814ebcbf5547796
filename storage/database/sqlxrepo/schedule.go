package sqlxrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core/schedule"
)

const selectSchedules = `
SELECT s.id, s.class_id, s.subject_id, s.teacher_id, s.day_of_week, s.start_time, s.end_time,
       c.name AS class_name, sub.name AS subject_name, u.name AS teacher_name
FROM schedules s
JOIN classes c ON c.id = s.class_id
JOIN subjects sub ON sub.id = s.subject_id
JOIN users u ON u.id = s.teacher_id`

type scheduleRow struct {
	ID          int64  `db:"id"`
	ClassID     int64  `db:"class_id"`
	SubjectID   int64  `db:"subject_id"`
	TeacherID   int64  `db:"teacher_id"`
	DayOfWeek   int    `db:"day_of_week"`
	StartTime   string `db:"start_time"`
	EndTime     string `db:"end_time"`
	ClassName   string `db:"class_name"`
	SubjectName string `db:"subject_name"`
	TeacherName string `db:"teacher_name"`
}

func (r scheduleRow) unboil() schedule.Schedule {
	return schedule.Schedule{
		ID:          r.ID,
		ClassID:     r.ClassID,
		SubjectID:   r.SubjectID,
		TeacherID:   r.TeacherID,
		DayOfWeek:   r.DayOfWeek,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		ClassName:   r.ClassName,
		SubjectName: r.SubjectName,
		TeacherName: r.TeacherName,
	}
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateSchedule(ctx context.Context, s schedule.Schedule) (schedule.Schedule, error) {
	err := repo.db.GetContext(ctx, &s.ID, `
		INSERT INTO schedules (class_id, subject_id, teacher_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.ClassID, s.SubjectID, s.TeacherID, s.DayOfWeek, s.StartTime, s.EndTime,
	)
	if err != nil {
		return schedule.Schedule{}, mapErr(err, "inserting schedule")
	}
	return s, nil
}

func (repo *scheduleRepository) QuerySchedules(ctx context.Context, filter schedule.Filter) ([]schedule.Schedule, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.TeacherID > 0 {
		args = append(args, filter.TeacherID)
		conds = append(conds, fmt.Sprintf("s.teacher_id = $%d", len(args)))
	}
	if filter.ClassID > 0 {
		args = append(args, filter.ClassID)
		conds = append(conds, fmt.Sprintf("s.class_id = $%d", len(args)))
	}
	if filter.Day != nil {
		args = append(args, *filter.Day)
		conds = append(conds, fmt.Sprintf("s.day_of_week = $%d", len(args)))
	}

	q := selectSchedules
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY s.day_of_week, s.start_time, s.id"

	var rows []scheduleRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting schedules")
	}
	schedules := make([]schedule.Schedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, r.unboil())
	}
	return schedules, nil
}

func (repo *scheduleRepository) GetSchedule(ctx context.Context, id int64) (schedule.Schedule, error) {
	var row scheduleRow
	if err := repo.db.GetContext(ctx, &row, selectSchedules+" WHERE s.id = $1", id); err != nil {
		return schedule.Schedule{}, trapNoRows(err, schedule.ErrNotFound, "selecting schedule")
	}
	return row.unboil(), nil
}

// DeleteSchedule relies on attendance_records.schedule_id ON DELETE CASCADE.
func (repo *scheduleRepository) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "deleting schedule")
	}
	return checkAffected(res, schedule.ErrNotFound)
}
