package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// withProfile attaches the stored profile of a siswa. Read lock held.
func (repo *userRepository) withProfile(usr user.User) user.User {
	if p, ok := repo.db.profiles[usr.ID]; ok {
		if p.ClassID != nil {
			p.ClassName = repo.db.classes[*p.ClassID].Name
		}
		usr.Profile = &p
	}
	return usr
}

// conflict checks the unique keys of users and student_profiles. Lock held.
func (repo *userRepository) conflict(email, nisn string, excludeID int64) error {
	for id, usr := range repo.db.users {
		if id != excludeID && usr.Email == email {
			return core.NewConflictError("email", user.ErrEmailExists)
		}
	}
	if nisn == "" {
		return nil
	}
	for id, p := range repo.db.profiles {
		if id != excludeID && p.NISN == nisn {
			return core.NewConflictError("nisn", user.ErrNISNExists)
		}
	}
	return nil
}

// checkClass mirrors the student_profiles.class_id foreign key. Lock held.
func (repo *userRepository) checkClass(p user.StudentProfile) error {
	if p.ClassID == nil {
		return nil
	}
	if _, ok := repo.db.classes[*p.ClassID]; !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, email, nisn string, excludeID int64) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.conflict(email, nisn, excludeID)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.conflict(usr.Email, "", 0); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.nextID()
	usr.Profile = nil
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) CreateStudent(_ context.Context, usr user.User, profile user.StudentProfile) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.insertStudent(&usr, profile); err != nil {
		return user.User{}, err
	}
	return repo.withProfile(usr), nil
}

// insertStudent validates before writing anything. Write lock held.
func (repo *userRepository) insertStudent(usr *user.User, profile user.StudentProfile) error {
	if err := repo.conflict(usr.Email, profile.NISN, 0); err != nil {
		return err
	}
	if err := repo.checkClass(profile); err != nil {
		return err
	}
	usr.ID = repo.db.nextID()
	usr.Profile = nil
	profile.UserID = usr.ID
	profile.ClassName = ""
	repo.db.users[usr.ID] = *usr
	repo.db.profiles[usr.ID] = profile
	return nil
}

func (repo *userRepository) CreateStudents(_ context.Context, students []user.Student) ([]user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	created := make([]user.User, 0, len(students))
	for _, s := range students {
		usr := s.User
		if err := repo.insertStudent(&usr, s.Profile); err != nil {
			// roll back the rows inserted so far
			for _, c := range created {
				delete(repo.db.users, c.ID)
				delete(repo.db.profiles, c.ID)
			}
			return nil, err
		}
		created = append(created, usr)
	}
	for i := range created {
		created[i] = repo.withProfile(created[i])
	}
	return created, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if search != "" && !(strings.Contains(strings.ToLower(usr.Name), search) || strings.Contains(usr.Email, search)) {
			continue
		}
		if len(filter.Roles) > 0 && !containsString(filter.Roles, usr.Role) {
			continue
		}
		users = append(users, repo.withProfile(usr))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}, {Field: "id", Ascending: false}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int64) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return repo.withProfile(usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return repo.withProfile(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, profile *user.StudentProfile) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	var nisn string
	if profile != nil {
		nisn = profile.NISN
	}
	if err := repo.conflict(usr.Email, nisn, usr.ID); err != nil {
		return user.User{}, err
	}
	if profile != nil {
		if err := repo.checkClass(*profile); err != nil {
			return user.User{}, err
		}
	}

	orig.Name = usr.Name
	orig.Email = usr.Email
	orig.Role = usr.Role
	orig.UpdatedAt = usr.UpdatedAt
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	repo.db.users[usr.ID] = orig
	if profile != nil {
		p := *profile
		p.UserID = usr.ID
		p.ClassName = ""
		repo.db.profiles[usr.ID] = p
	}
	return repo.withProfile(orig), nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return user.ErrNotFound
	}
	repo.db.deleteUserCascade(id)
	return nil
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "id":
		return compareInt64(a.ID, b.ID)
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
