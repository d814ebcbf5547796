package echoapi

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/tests"
)

func TestAttendanceAPI_record(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	other := e.createClass(t, "XI IPS 2")
	outsider := testutil.CreateStudent(t, e.usrRepo, "Citra", "citra@sekolah.test", "0011223344", &other.ID)

	entries := func(studentID int64, st attendance.Status) []attendance.Entry {
		return []attendance.Entry{{StudentID: studentID, Status: st}}
	}

	e.run(t, []httpTest{
		{
			name:     "siswa",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.siswa),
			body:     attendance.RecordRequest{ScheduleID: f.schedule.ID, Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "another guru",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru2),
			body:     attendance.RecordRequest{ScheduleID: f.schedule.ID, Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "guru without schedule",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru),
			body:     attendance.RecordRequest{ClassID: f.class.ID, Date: "2024-03-04", Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "empty records",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru),
			body:     attendance.RecordRequest{ScheduleID: f.schedule.ID},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"records": ""},
		},
		{
			name:     "unknown status",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru),
			body:     attendance.RecordRequest{ScheduleID: f.schedule.ID, Records: entries(f.siswa.ID, "Telat")},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"records[0].status": "status must be one of Hadir, Sakit, Izin or Alfa"},
		},
		{
			name:   "student listed twice",
			method: http.MethodPost,
			path:   "/api/attendance/records",
			token:  e.token(t, f.guru),
			body: attendance.RecordRequest{ScheduleID: f.schedule.ID, Records: []attendance.Entry{
				{StudentID: f.siswa.ID, Status: attendance.StatusPresent},
				{StudentID: f.siswa.ID, Status: attendance.StatusSick},
			}},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"records": "student appears more than once"},
		},
		{
			name:     "class and date required without schedule",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.admin),
			body:     attendance.RecordRequest{Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"class_id": "", "date": ""},
		},
		{
			name:     "bad date",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru),
			body:     attendance.RecordRequest{ScheduleID: f.schedule.ID, Date: "04/03/2024", Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"date": ""},
		},
		{
			name:     "unknown schedule",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru),
			body:     attendance.RecordRequest{ScheduleID: 9999, Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"schedule_id": "schedule not found"},
		},
		{
			name:   "student not in the class",
			method: http.MethodPost,
			path:   "/api/attendance/records",
			token:  e.token(t, f.guru),
			body: attendance.RecordRequest{ScheduleID: f.schedule.ID, Records: []attendance.Entry{
				{StudentID: outsider.ID, Status: attendance.StatusPresent},
				{StudentID: f.siswa.ID, Status: attendance.StatusPresent},
			}},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"records[0].student_id": "student is not in this class"},
		},
		{
			name:     "owning guru",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.guru),
			body:     attendance.RecordRequest{ScheduleID: f.schedule.ID, Date: "2024-03-04", Records: entries(f.siswa.ID, attendance.StatusPresent)},
			wantCode: http.StatusOK,
			wantMsg:  "attendance saved",
		},
		{
			name:     "admin by class",
			method:   http.MethodPost,
			path:     "/api/attendance/records",
			token:    e.token(t, f.admin),
			body:     attendance.RecordRequest{ClassID: other.ID, Date: "2024-03-04", Records: entries(outsider.ID, attendance.StatusExcused)},
			wantCode: http.StatusOK,
		},
	})

	// the rejected batch wrote nothing for Ani's valid row either
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	records, err := e.attRepo.QueryRecords(context.Background(), []int64{f.siswa.ID}, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusPresent, records[0].Status)
	require.NotNil(t, records[0].ScheduleID)
	assert.Equal(t, f.schedule.ID, *records[0].ScheduleID)
	assert.Equal(t, f.guru.ID, records[0].RecordedBy)
}

func TestAttendanceAPI_recordIsIdempotent(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	guruToken := e.token(t, f.guru)

	for _, st := range []attendance.Status{attendance.StatusPresent, attendance.StatusPresent, attendance.StatusSick} {
		rec := e.do(t, http.MethodPost, "/api/attendance/records", guruToken, attendance.RecordRequest{
			ScheduleID: f.schedule.ID,
			Date:       "2024-03-04",
			Records:    []attendance.Entry{{StudentID: f.siswa.ID, Status: st}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	records, err := e.attRepo.QueryRecords(context.Background(), []int64{f.siswa.ID}, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.StatusSick, records[0].Status)
}

func TestAttendanceAPI_rosters(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	budi := testutil.CreateStudent(t, e.usrRepo, "Budi", "budi.s@sekolah.test", "0055667788", &f.class.ID)
	guruToken := e.token(t, f.guru)

	rec := e.do(t, http.MethodPost, "/api/attendance/records", guruToken, attendance.RecordRequest{
		ScheduleID: f.schedule.ID,
		Date:       "2024-03-04",
		Records:    []attendance.Entry{{StudentID: budi.ID, Status: attendance.StatusAbsent}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	classPath := "/api/attendance/class/" + strconv.FormatInt(f.class.ID, 10)
	schedPath := "/api/attendance/schedules/" + strconv.FormatInt(f.schedule.ID, 10) + "/students"

	e.run(t, []httpTest{
		{name: "class roster as siswa", method: http.MethodGet, path: classPath, token: e.token(t, f.siswa), wantCode: http.StatusForbidden},
		{name: "schedule roster as another guru", method: http.MethodGet, path: schedPath, token: e.token(t, f.guru2), wantCode: http.StatusForbidden},
		{name: "unknown schedule", method: http.MethodGet, path: "/api/attendance/schedules/9999/students", token: guruToken, wantCode: http.StatusNotFound},
		{name: "bad date", method: http.MethodGet, path: classPath + "?date=2024-13-01", token: guruToken, wantCode: http.StatusBadRequest},
	})

	for _, path := range []string{classPath, schedPath} {
		t.Run(path, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, path+"?date=2024-03-04", guruToken, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res struct {
				Students []attendance.RosterEntry `json:"students"`
			}
			decode(t, rec, &res)
			require.Len(t, res.Students, 2)
			assert.Equal(t, "Ani", res.Students[0].Name)
			assert.Nil(t, res.Students[0].Status)
			assert.Equal(t, "Budi", res.Students[1].Name)
			require.NotNil(t, res.Students[1].Status)
			assert.Equal(t, attendance.StatusAbsent, *res.Students[1].Status)
		})
	}

	t.Run("another day", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, classPath+"?date=2024-03-05", e.token(t, f.admin), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res struct {
			Students []attendance.RosterEntry `json:"students"`
		}
		decode(t, rec, &res)
		for _, s := range res.Students {
			assert.Nil(t, s.Status)
		}
	})
}

func TestAttendanceAPI_todaySchedules(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)

	e.run(t, []httpTest{
		{name: "admin", method: http.MethodGet, path: "/api/attendance/schedules", token: e.token(t, f.admin), wantCode: http.StatusForbidden},
		{name: "guru", method: http.MethodGet, path: "/api/attendance/schedules", token: e.token(t, f.guru), wantCode: http.StatusOK},
	})
}

func TestAttendanceAPI_summary(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	guruToken := e.token(t, f.guru)

	for date, st := range map[string]attendance.Status{
		"2024-03-04": attendance.StatusPresent,
		"2024-03-11": attendance.StatusSick,
		"2024-03-18": attendance.StatusPresent,
		"2024-04-01": attendance.StatusAbsent, // another month
	} {
		rec := e.do(t, http.MethodPost, "/api/attendance/records", guruToken, attendance.RecordRequest{
			ScheduleID: f.schedule.ID,
			Date:       date,
			Records:    []attendance.Entry{{StudentID: f.siswa.ID, Status: st}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	query := "?class_id=" + strconv.FormatInt(f.class.ID, 10) + "&month=3&year=2024"

	e.run(t, []httpTest{
		{name: "missing params", method: http.MethodGet, path: "/api/attendance/summary", token: guruToken, wantCode: http.StatusBadRequest, wantErrs: map[string]string{"class_id": "this field is required", "month": "this field is required", "year": "this field is required"}},
		{name: "bad month", method: http.MethodGet, path: "/api/attendance/summary?class_id=1&month=13&year=2024", token: guruToken, wantCode: http.StatusBadRequest, wantErrs: map[string]string{"month": "month must be 12 or less"}},
		{name: "siswa", method: http.MethodGet, path: "/api/attendance/summary" + query, token: e.token(t, f.siswa), wantCode: http.StatusForbidden},
	})

	rec := e.do(t, http.MethodGet, "/api/attendance/summary"+query, guruToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Summary []attendance.StudentSummary `json:"summary"`
	}
	decode(t, rec, &res)
	require.Len(t, res.Summary, 1)
	ss := res.Summary[0]
	assert.Equal(t, f.siswa.ID, ss.StudentID)
	assert.Equal(t, "0012345678", ss.NISN)
	assert.Equal(t, map[string]attendance.Status{
		"2024-03-04": attendance.StatusPresent,
		"2024-03-11": attendance.StatusSick,
		"2024-03-18": attendance.StatusPresent,
	}, ss.Records)
	assert.Equal(t, map[attendance.Status]int{
		attendance.StatusPresent: 2,
		attendance.StatusSick:    1,
		attendance.StatusExcused: 0,
		attendance.StatusAbsent:  0,
	}, ss.Totals)

	t.Run("export", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/attendance/summary/export"+query, guruToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, xlsxMIME, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "rekap-absensi-")

		wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer func() { _ = wb.Close() }()

		rows, err := wb.GetRows("Rekap")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"No", "NISN", "Nama", "1"}, rows[0][:4])
		assert.Equal(t, []string{"1", "0012345678", "Ani"}, rows[1][:3])
		assert.Equal(t, "H", rows[1][3+3]) // 4 March
		assert.Equal(t, "S", rows[1][3+10])
	})
}
