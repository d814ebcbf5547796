package sqlxrepo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/user"
)

const upsertRecord = `
INSERT INTO attendance_records (student_id, class_id, schedule_id, attendance_date, status, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (student_id, attendance_date) DO UPDATE
SET status = EXCLUDED.status,
    schedule_id = EXCLUDED.schedule_id,
    recorded_by = EXCLUDED.recorded_by,
    updated_at = EXCLUDED.updated_at`

type recordRow struct {
	ID         int64      `db:"id"`
	StudentID  int64      `db:"student_id"`
	ClassID    int64      `db:"class_id"`
	ScheduleID null.Int64 `db:"schedule_id"`
	Date       time.Time  `db:"attendance_date"`
	Status     string     `db:"status"`
	RecordedBy null.Int64 `db:"recorded_by"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func (r recordRow) unboil() attendance.Record {
	return attendance.Record{
		ID:         r.ID,
		StudentID:  r.StudentID,
		ClassID:    r.ClassID,
		ScheduleID: r.ScheduleID.Ptr(),
		Date:       core.TruncateDay(r.Date),
		Status:     attendance.Status(r.Status),
		RecordedBy: r.RecordedBy.Int64,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type studentRow struct {
	ID   int64       `db:"id"`
	Name string      `db:"name"`
	NISN null.String `db:"nisn"`
}

type attendanceRepository struct {
	db *sqlx.DB

	nowFunc func() time.Time
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db, nowFunc: func() time.Time { return time.Now().UTC() }}
}

func (repo *attendanceRepository) ClassStudents(ctx context.Context, classID int64) ([]attendance.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT u.id, u.name, p.nisn
		FROM users u
		JOIN student_profiles p ON p.user_id = u.id
		WHERE p.class_id = $1 AND u.role = $2
		ORDER BY lower(u.name), u.id`,
		classID, user.RoleStudent,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting class students")
	}
	students := make([]attendance.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, attendance.Student{ID: r.ID, Name: r.Name, NISN: r.NISN.String})
	}
	return students, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, studentIDs []int64, from, to time.Time) ([]attendance.Record, error) {
	var rows []recordRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, student_id, class_id, schedule_id, attendance_date, status, recorded_by, created_at, updated_at
		FROM attendance_records
		WHERE student_id = ANY($1) AND attendance_date >= $2 AND attendance_date < $3
		ORDER BY attendance_date, student_id`,
		pq.Array(studentIDs), from.Format(core.DateLayout), to.Format(core.DateLayout),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.unboil())
	}
	return records, nil
}

func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records []attendance.Record) error {
	now := repo.nowFunc()
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, upsertRecord)
		if err != nil {
			return errors.Wrap(err, "preparing upsert")
		}
		defer stmt.Close()

		for _, r := range records {
			_, err = stmt.ExecContext(ctx,
				r.StudentID,
				r.ClassID,
				null.Int64FromPtr(r.ScheduleID),
				r.Date.Format(core.DateLayout),
				string(r.Status),
				null.NewInt64(r.RecordedBy, r.RecordedBy > 0),
				now,
			)
			if err != nil {
				return mapErr(err, "upserting attendance record")
			}
		}
		return nil
	})
}
