package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/auth"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/school"
	"github.com/sekolah-app/sekolah/core/user"
	emailsvc "github.com/sekolah-app/sekolah/services/email"
	inmemdb "github.com/sekolah-app/sekolah/storage/database/inmem"
	"github.com/sekolah-app/sekolah/tests"
)

const testSecret = "test-secret"

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Log(append([]interface{}{msg}, args...)...) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Log(append([]interface{}{msg}, args...)...) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Log(append([]interface{}{msg}, args...)...) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Log(append([]interface{}{msg}, args...)...) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatal(append([]interface{}{msg}, args...)...) }

// env is a server wired to in-memory repositories.
type env struct {
	srv     Server
	tokens  *auth.TokenService
	mailSvc *emailsvc.ConsoleServiceMock

	usrRepo   user.Repository
	schoolSvc school.Service
	schedSvc  schedule.Service
	attRepo   attendance.Repository
}

func setup(t *testing.T) *env {
	user.PasswordHashCost = bcrypt.MinCost

	conf := &core.Config{
		AppName:          "Sekolah",
		TestMode:         true,
		Timezone:         "Asia/Jakarta",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Sekolah", Address: "noreply@sekolah.test"},
		Server: core.ServerConfig{
			CookieSecure:       true,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
	}
	logger := testLogger{t}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	tokens, err := auth.NewTokenService([]byte(testSecret), auth.DefaultTTL)
	require.NoError(t, err)

	db := inmemdb.Open()
	e := &env{
		tokens:  tokens,
		mailSvc: emailsvc.NewConsoleServiceMock(conf),
		usrRepo: inmemdb.NewUserRepository(db),
		attRepo: inmemdb.NewAttendanceRepository(db),
	}
	usrSvc := user.NewService(e.usrRepo, e.mailSvc)
	e.schoolSvc = school.NewService(inmemdb.NewSchoolRepository(db), nil, 0, logger)
	e.schedSvc = schedule.NewService(inmemdb.NewScheduleRepository(db), e.schoolSvc, usrSvc, conf.Location())
	attSvc := attendance.NewService(e.attRepo, e.schedSvc, conf.Location())

	e.srv = NewServer(Deps{
		Conf:           conf,
		Logger:         logger,
		DB:             db,
		Tokens:         tokens,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		SchoolSvc:      e.schoolSvc,
		ScheduleSvc:    e.schedSvc,
		AttendanceSvc:  attSvc,
		DisableReqLogs: true,
	})
	return e
}

func (e *env) token(t *testing.T, usr user.User) string {
	token, err := e.tokens.Issue(usr.Identity())
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (e *env) createClass(t *testing.T, name string) school.Class {
	class, err := e.schoolSvc.CreateClass(context.Background(), school.NewItem{Name: name})
	require.NoError(t, err)
	return class
}

func (e *env) createSubject(t *testing.T, name string) school.Subject {
	subject, err := e.schoolSvc.CreateSubject(context.Background(), school.NewItem{Name: name})
	require.NoError(t, err)
	return subject
}

func (e *env) createSchedule(t *testing.T, classID, subjectID, teacherID int64, day int) schedule.Schedule {
	s, err := e.schedSvc.Create(context.Background(), schedule.NewSchedule{
		ClassID: classID, SubjectID: subjectID, TeacherID: teacherID,
		DayOfWeek: &day, StartTime: "07:00", EndTime: "08:30",
	})
	require.NoError(t, err)
	return s
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantMsg  string
	wantErrs map[string]string
}

func newAuthRequest(t *testing.T, method, path, token string, data interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if data != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(data))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func (e *env) do(t *testing.T, method, path, token string, data interface{}) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(t, method, path, token, data)
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *env) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.token, tt.body)
			checkCodeAndMessage(t, tt, rec)
		})
	}
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func checkCodeAndMessage(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if !assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String()) {
		return
	}
	var res envelope
	decode(t, rec, &res)
	assert.Equal(t, tt.wantCode < 400, res.Success)
	if tt.wantMsg != "" {
		assert.Equal(t, tt.wantMsg, res.Message)
	}
	for field, msg := range tt.wantErrs {
		if assert.Contains(t, res.Errors, field) && msg != "" {
			assert.Equal(t, msg, res.Errors[field])
		}
	}
}

// fixtures

type fixtures struct {
	admin, guru, guru2, siswa user.User
	class                     school.Class
	subject                   school.Subject
	schedule                  schedule.Schedule
}

func (e *env) fixtures(t *testing.T) fixtures {
	var f fixtures
	f.admin = testutil.CreateUser(t, e.usrRepo, "Admin", "admin@sekolah.test", "Admin#2023", user.RoleAdmin)
	f.guru = testutil.CreateUser(t, e.usrRepo, "Bu Sari", "sari@sekolah.test", "Guru#2023x", user.RoleTeacher)
	f.guru2 = testutil.CreateUser(t, e.usrRepo, "Pak Budi", "budi@sekolah.test", "Guru#2023y", user.RoleTeacher)
	f.class = e.createClass(t, "X IPA 1")
	f.subject = e.createSubject(t, "Matematika")
	f.siswa = testutil.CreateStudent(t, e.usrRepo, "Ani", "ani@sekolah.test", "0012345678", &f.class.ID)
	f.schedule = e.createSchedule(t, f.class.ID, f.subject.ID, f.guru.ID, int(time.Monday))
	return f
}
