package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/auth"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "guru"
	RoleStudent = "siswa"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	Roles = []Role{
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Guru", Value: RoleTeacher},
		{Name: "Siswa", Value: RoleStudent},
	}

	// PasswordHashCost is the bcrypt cost used by SetPassword (lowered in tests).
	PasswordHashCost = bcrypt.DefaultCost
)

// RoleName returns the display name of role.
func RoleName(role string) string {
	for _, r := range Roles {
		if r.Value == role {
			return r.Name
		}
	}
	return role
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         string          `json:"role"`
	PasswordHash []byte          `json:"-"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at"` // UTC
	Profile      *StudentProfile `json:"profile,omitempty"`
}

// StudentProfile holds the extra attributes of a siswa.
type StudentProfile struct {
	UserID     int64  `json:"user_id"`
	NISN       string `json:"nisn"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	ParentName string `json:"parent_name"`
	ClassID    *int64 `json:"class_id"`
	ClassName  string `json:"class_name,omitempty"`
}

// Student pairs a new siswa User with its profile for atomic creation.
type Student struct {
	User    User
	Profile StudentProfile
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), PasswordHashCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Identity returns the token principal of u.
func (u *User) Identity() auth.Identity {
	return auth.Identity{ID: u.ID, Name: u.Name, Role: u.Role}
}

// NewUser contains information needed to create a new admin or guru.
type NewUser struct {
	Name     string `json:"name" validate:"required,notblank,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if nu.Role == RoleStudent {
		return core.NewValidationError(errStudentViaUsers, core.FieldError{Field: "role", Error: errStudentViaUsers.Error()})
	}
	return nil
}

// NewStudent contains information needed to create a siswa with its profile.
type NewStudent struct {
	Name       string `json:"name" validate:"required,notblank,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required"`
	NISN       string `json:"nisn" validate:"omitempty,numeric,max=20"`
	Address    string `json:"address" validate:"max=1000"`
	Phone      string `json:"phone" validate:"max=32"`
	ParentName string `json:"parent_name" validate:"max=255"`
	ClassID    *int64 `json:"class_id" validate:"omitempty,gt=0"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.NISN = core.CleanString(ns.NISN)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	ns.ParentName = core.CleanString(ns.ParentName)
	return validate.Struct(ns)
}

// BulkStudent is one row of a bulk import. A missing password is generated.
type BulkStudent struct {
	Name     string `json:"name" validate:"required,notblank,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password"`
	NISN     string `json:"nisn" validate:"omitempty,numeric,max=20"`
}

type BulkImport struct {
	Students []BulkStudent `json:"students" validate:"required,min=1,max=1000,dive"`
}

func (bi *BulkImport) Validate(validate *validator.Validate) error {
	for i := range bi.Students {
		s := &bi.Students[i]
		s.Name = core.CleanString(s.Name)
		s.Email = core.CleanString(s.Email, true /* lower */)
		s.NISN = core.CleanString(s.NISN)
	}
	if err := validate.Struct(bi); err != nil {
		return err
	}

	// duplicates inside the batch would only surface as a DB conflict
	emails := make(map[string]int, len(bi.Students))
	nisns := make(map[string]int, len(bi.Students))
	var flds []core.FieldError
	for i, s := range bi.Students {
		if j, ok := emails[s.Email]; ok {
			flds = append(flds, core.FieldError{Field: fieldAt("students", i, "email"), Error: duplicateOf(j)})
		} else {
			emails[s.Email] = i
		}
		if s.NISN == "" {
			continue
		}
		if j, ok := nisns[s.NISN]; ok {
			flds = append(flds, core.FieldError{Field: fieldAt("students", i, "nisn"), Error: duplicateOf(j)})
		} else {
			nisns[s.NISN] = i
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty strings and nil pointers leave the stored value unchanged.
type UpdateUser struct {
	Name     string `json:"name" validate:"max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"omitempty,role"`

	// siswa profile
	NISN       *string `json:"nisn" validate:"omitempty,numeric,max=20"`
	Address    *string `json:"address" validate:"omitempty,max=1000"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	ParentName *string `json:"parent_name" validate:"omitempty,max=255"`
	ClassID    *int64  `json:"class_id" validate:"omitempty,gte=0"` // 0 clears the class
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if role := core.CleanString(uu.Role, true /* lower */); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}
	for _, s := range []*string{uu.NISN, uu.Address, uu.Phone, uu.ParentName} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(uu)
}

// HasProfileFields reports whether any siswa profile field was provided.
func (uu *UpdateUser) HasProfileFields() bool {
	return uu.NISN != nil || uu.Address != nil || uu.Phone != nil || uu.ParentName != nil || uu.ClassID != nil
}

// applyProfile merges the provided profile fields into p.
func (uu *UpdateUser) applyProfile(p StudentProfile) StudentProfile {
	if uu.NISN != nil {
		p.NISN = *uu.NISN
	}
	if uu.Address != nil {
		p.Address = *uu.Address
	}
	if uu.Phone != nil {
		p.Phone = *uu.Phone
	}
	if uu.ParentName != nil {
		p.ParentName = *uu.ParentName
	}
	if uu.ClassID != nil {
		if *uu.ClassID == 0 {
			p.ClassID = nil
		} else {
			id := *uu.ClassID
			p.ClassID = &id
		}
	}
	return p
}

type QueryFilter struct {
	Search string   `query:"search"`
	Roles  []string `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	roles := qf.Roles[:0]
	for _, r := range qf.Roles {
		if r = core.CleanString(r, true /* lower */); r != "" {
			roles = append(roles, r)
		}
	}
	qf.Roles = roles
}

// OrderingFields are the fields users can be ordered by.
var OrderingFields = []string{"id", "name", "email", "role", "created_at"}
