package user

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
)

var (
	// errors
	ErrNotFound           = errors.Wrap(core.ErrNotFound, "user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrNISNExists         = errors.New("a student with this NISN already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSelfDelete         = errors.New("you cannot delete your own account")

	errStudentViaUsers = errors.New("students are created through /api/students")
)

// dummyUser is compared against when the email is unknown so that both
// login failure paths cost one bcrypt comparison.
var (
	dummyUser     User
	dummyUserOnce sync.Once
)

type (
	Repository interface {
		// CheckUniqueness returns a *core.ConflictError when email or nisn (if not empty)
		// already belong to a user other than excludeID.
		CheckUniqueness(ctx context.Context, email, nisn string, excludeID int64) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// CreateStudent stores the user and its profile atomically.
		CreateStudent(ctx context.Context, usr User, profile StudentProfile) (User, error)
		// CreateStudents stores every student or none.
		CreateStudents(ctx context.Context, students []Student) ([]User, error)
		// QueryUsers applies AND on QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id int64) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// UpdateUser saves usr and, when profile is not nil, upserts it in the same transaction.
		UpdateUser(ctx context.Context, usr User, profile *StudentProfile) (User, error)
		DeleteUser(ctx context.Context, id int64) error
	}

	Service interface {
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		CheckUniqueness(ctx context.Context, email, nisn string, excludeID int64) error
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateStudent(ctx context.Context, ns NewStudent) (User, error)
		BulkCreateStudents(ctx context.Context, students []BulkStudent) ([]User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id int64) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		ListTeachers(ctx context.Context) ([]User, error)
		Update(ctx context.Context, id int64, uu UpdateUser) (User, error)
		SetPassword(ctx context.Context, id int64, pwd string) error
		Delete(ctx context.Context, id, actorID int64) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			dummyUserOnce.Do(func() { _ = dummyUser.SetPassword(uuid.NewString()) })
			_ = dummyUser.CheckPassword(pwd)
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *service) CheckUniqueness(ctx context.Context, email, nisn string, excludeID int64) error {
	return svc.repo.CheckUniqueness(ctx, email, nisn, excludeID)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role == RoleStudent {
		return User{}, core.NewValidationError(errStudentViaUsers, core.FieldError{Field: "role", Error: errStudentViaUsers.Error()})
	}
	if err := svc.repo.CheckUniqueness(ctx, nu.Email, "", 0); err != nil {
		return User{}, err
	}

	now := svc.nowFunc()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *service) CreateStudent(ctx context.Context, ns NewStudent) (User, error) {
	if err := svc.repo.CheckUniqueness(ctx, ns.Email, ns.NISN, 0); err != nil {
		return User{}, err
	}

	now := svc.nowFunc()
	usr := User{
		Name:      ns.Name,
		Email:     ns.Email,
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	profile := StudentProfile{
		NISN:       ns.NISN,
		Address:    ns.Address,
		Phone:      ns.Phone,
		ParentName: ns.ParentName,
		ClassID:    ns.ClassID,
	}
	usr, err := svc.repo.CreateStudent(ctx, usr, profile)
	if err != nil {
		return User{}, err
	}

	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *service) BulkCreateStudents(ctx context.Context, rows []BulkStudent) ([]User, error) {
	now := svc.nowFunc()
	students := make([]Student, 0, len(rows))
	passwords := make(map[string]string) // email -> password to send
	for _, row := range rows {
		pwd := row.Password
		if pwd == "" {
			if pwd = row.NISN; pwd == "" {
				pwd = generatePassword()
			}
			passwords[row.Email] = pwd
		}
		usr := User{
			Name:      row.Name,
			Email:     row.Email,
			Role:      RoleStudent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(pwd); err != nil {
			return nil, errors.Wrap(err, "hashing password")
		}
		students = append(students, Student{User: usr, Profile: StudentProfile{NISN: row.NISN}})
	}

	users, err := svc.repo.CreateStudents(ctx, students)
	if err != nil {
		return nil, err
	}

	msgs := make([]*core.EmailMessage, 0, len(passwords))
	for _, usr := range users {
		pwd, ok := passwords[usr.Email]
		if !ok {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Akun siswa Anda",
			TemplateName: "student_credentials",
			TemplateData: map[string]string{"Name": usr.Name, "Email": usr.Email, "Password": pwd},
		})
	}
	if len(msgs) > 0 && svc.mailSvc != nil {
		svc.mailSvc.SendMessages(msgs...)
	}
	return users, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) ListTeachers(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx, QueryFilter{Roles: []string{RoleTeacher}}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *service) Update(ctx context.Context, id int64, uu UpdateUser) (User, error) {
	orig, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	var nisn string
	if uu.NISN != nil {
		nisn = *uu.NISN
	}
	if err = svc.repo.CheckUniqueness(ctx, uu.Email, nisn, id); err != nil {
		return User{}, err
	}

	usr := orig
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Role = uu.Role
	usr.UpdatedAt = svc.nowFunc()
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}

	// a user leaving the siswa role keeps its profile row untouched
	var profile *StudentProfile
	if usr.Role == RoleStudent && (uu.HasProfileFields() || orig.Profile == nil) {
		base := StudentProfile{UserID: id}
		if orig.Profile != nil {
			base = *orig.Profile
		}
		p := uu.applyProfile(base)
		p.UserID = id
		profile = &p
	}
	return svc.repo.UpdateUser(ctx, usr, profile)
}

func (svc *service) SetPassword(ctx context.Context, id int64, pwd string) error {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.nowFunc()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return err
}

func (svc *service) Delete(ctx context.Context, id, actorID int64) error {
	if id == actorID {
		return core.NewValidationError(ErrSelfDelete)
	}
	return svc.repo.DeleteUser(ctx, id)
}

func (svc *service) sendWelcomeEmail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Selamat datang",
		TemplateName: "welcome",
		TemplateData: map[string]string{"Name": usr.Name, "Email": usr.Email, "RoleName": RoleName(usr.Role)},
	})
}

// generatePassword returns a random 12 character password.
func generatePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func fieldAt(list string, idx int, field string) string {
	return list + "[" + strconv.Itoa(idx) + "]." + field
}

func duplicateOf(idx int) string {
	return fmt.Sprintf("duplicates row %d", idx)
}
