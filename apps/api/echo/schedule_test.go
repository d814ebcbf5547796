package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/tests"
)

func TestScheduleAPI_create(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	adminToken := e.token(t, f.admin)

	day := int(time.Tuesday)
	valid := schedule.NewSchedule{
		ClassID: f.class.ID, SubjectID: f.subject.ID, TeacherID: f.guru2.ID,
		DayOfWeek: &day, StartTime: "09:00", EndTime: "10:30",
	}
	withTimes := func(start, end string) schedule.NewSchedule {
		ns := valid
		ns.StartTime, ns.EndTime = start, end
		return ns
	}
	withTeacher := func(id int64) schedule.NewSchedule {
		ns := valid
		ns.TeacherID = id
		return ns
	}
	badDay := 7

	e.run(t, []httpTest{
		{
			name:     "as guru",
			method:   http.MethodPost,
			path:     "/api/schedules",
			token:    e.token(t, f.guru),
			body:     valid,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/schedules",
			token:    adminToken,
			body:     map[string]string{},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"class_id": "", "subject_id": "", "teacher_id": "", "day_of_week": "", "start_time": ""},
		},
		{
			name:     "bad time format",
			method:   http.MethodPost,
			path:     "/api/schedules",
			token:    adminToken,
			body:     withTimes("7:00", "08:00"),
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"start_time": "start_time must be a time in HH:MM format"},
		},
		{
			name:     "ends before it starts",
			method:   http.MethodPost,
			path:     "/api/schedules",
			token:    adminToken,
			body:     withTimes("10:00", "09:00"),
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"end_time": "end_time must be after start_time"},
		},
		{
			name:   "bad day",
			method: http.MethodPost,
			path:   "/api/schedules",
			token:  adminToken,
			body: schedule.NewSchedule{
				ClassID: f.class.ID, SubjectID: f.subject.ID, TeacherID: f.guru2.ID,
				DayOfWeek: &badDay, StartTime: "09:00", EndTime: "10:30",
			},
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"day_of_week": ""},
		},
		{
			name:     "teacher is not a guru",
			method:   http.MethodPost,
			path:     "/api/schedules",
			token:    adminToken,
			body:     withTeacher(f.siswa.ID),
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"teacher_id": "user is not a guru"},
		},
		{
			name:     "unknown teacher",
			method:   http.MethodPost,
			path:     "/api/schedules",
			token:    adminToken,
			body:     withTeacher(9999),
			wantCode: http.StatusBadRequest,
			wantErrs: map[string]string{"teacher_id": "teacher not found"},
		},
	})

	rec := e.do(t, http.MethodPost, "/api/schedules", adminToken, valid)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res struct {
		Schedule schedule.Schedule `json:"schedule"`
	}
	decode(t, rec, &res)
	assert.Equal(t, "X IPA 1", res.Schedule.ClassName)
	assert.Equal(t, "Matematika", res.Schedule.SubjectName)
	assert.Equal(t, "Pak Budi", res.Schedule.TeacherName)
	assert.Equal(t, day, res.Schedule.DayOfWeek)
}

func TestScheduleAPI_query(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	e.createSchedule(t, f.class.ID, f.subject.ID, f.guru2.ID, int(time.Tuesday))
	other := e.createClass(t, "XI IPS 2")
	e.createSchedule(t, other.ID, f.subject.ID, f.guru.ID, int(time.Wednesday))

	tests := []struct {
		name      string
		path      string
		token     string
		wantCode  int
		wantCount int
	}{
		{name: "admin sees all", path: "/api/schedules", token: e.token(t, f.admin), wantCode: http.StatusOK, wantCount: 3},
		{name: "guru sees own", path: "/api/schedules", token: e.token(t, f.guru), wantCode: http.StatusOK, wantCount: 2},
		{name: "guru cannot widen", path: "/api/schedules?day=2", token: e.token(t, f.guru), wantCode: http.StatusOK, wantCount: 0},
		{name: "by class", path: "/api/schedules?class_id=" + strconv.FormatInt(other.ID, 10), token: e.token(t, f.admin), wantCode: http.StatusOK, wantCount: 1},
		{name: "by day", path: "/api/schedules?day=1", token: e.token(t, f.admin), wantCode: http.StatusOK, wantCount: 1},
		{name: "bad day", path: "/api/schedules?day=9", token: e.token(t, f.admin), wantCode: http.StatusBadRequest},
		{name: "bad class", path: "/api/schedules?class_id=x", token: e.token(t, f.admin), wantCode: http.StatusBadRequest},
		{name: "siswa", path: "/api/schedules", token: e.token(t, f.siswa), wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.path, tt.token, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}

			var res struct {
				Schedules []schedule.Schedule `json:"schedules"`
			}
			decode(t, rec, &res)
			assert.Len(t, res.Schedules, tt.wantCount)
			for i := 1; i < len(res.Schedules); i++ {
				assert.LessOrEqual(t, res.Schedules[i-1].DayOfWeek, res.Schedules[i].DayOfWeek)
			}
		})
	}
}

func TestScheduleAPI_deleteCascadesAttendance(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	adminToken := e.token(t, f.admin)

	second := e.createSchedule(t, f.class.ID, f.subject.ID, f.guru2.ID, int(time.Tuesday))
	bayu := testutil.CreateStudent(t, e.usrRepo, "Bayu", "bayu@sekolah.test", "0099887766", &f.class.ID)

	for _, tc := range []struct {
		scheduleID, studentID int64
		token                 string
	}{
		{f.schedule.ID, f.siswa.ID, e.token(t, f.guru)},
		{second.ID, bayu.ID, e.token(t, f.guru2)},
	} {
		rec := e.do(t, http.MethodPost, "/api/attendance/records", tc.token, attendance.RecordRequest{
			ScheduleID: tc.scheduleID,
			Date:       "2024-03-04",
			Records:    []attendance.Entry{{StudentID: tc.studentID, Status: attendance.StatusPresent}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	e.run(t, []httpTest{
		{name: "as guru", method: http.MethodDelete, path: "/api/schedules/" + strconv.FormatInt(f.schedule.ID, 10), token: e.token(t, f.guru), wantCode: http.StatusForbidden},
		{name: "as admin", method: http.MethodDelete, path: "/api/schedules/" + strconv.FormatInt(f.schedule.ID, 10), token: adminToken, wantCode: http.StatusOK},
		{name: "again", method: http.MethodDelete, path: "/api/schedules/" + strconv.FormatInt(f.schedule.ID, 10), token: adminToken, wantCode: http.StatusNotFound},
	})

	// only the attendance taken through the deleted schedule is gone
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	records, err := e.attRepo.QueryRecords(context.Background(), []int64{f.siswa.ID, bayu.ID}, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, bayu.ID, records[0].StudentID)
}

func TestScheduleAPI_deleteFollowsLatestSchedule(t *testing.T) {
	e := setup(t)
	f := e.fixtures(t)
	adminToken := e.token(t, f.admin)

	second := e.createSchedule(t, f.class.ID, f.subject.ID, f.guru2.ID, int(time.Monday))
	for _, tc := range []struct {
		scheduleID int64
		token      string
		status     attendance.Status
	}{
		{f.schedule.ID, e.token(t, f.guru), attendance.StatusPresent},
		{second.ID, e.token(t, f.guru2), attendance.StatusSick},
	} {
		rec := e.do(t, http.MethodPost, "/api/attendance/records", tc.token, attendance.RecordRequest{
			ScheduleID: tc.scheduleID,
			Date:       "2024-03-04",
			Records:    []attendance.Entry{{StudentID: f.siswa.ID, Status: tc.status}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	query := func() []attendance.Record {
		records, err := e.attRepo.QueryRecords(context.Background(), []int64{f.siswa.ID}, day, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		return records
	}

	records := query()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ScheduleID)
	assert.Equal(t, second.ID, *records[0].ScheduleID)
	assert.Equal(t, attendance.StatusSick, records[0].Status)

	// the first schedule no longer owns the record
	rec := e.do(t, http.MethodDelete, "/api/schedules/"+strconv.FormatInt(f.schedule.ID, 10), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, query(), 1)

	rec = e.do(t, http.MethodDelete, "/api/schedules/"+strconv.FormatInt(second.ID, 10), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, query())
}
