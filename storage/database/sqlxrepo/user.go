package sqlxrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/user"
)

const selectUsers = `
SELECT u.id, u.name, u.email, u.role, u.password_hash, u.created_at, u.updated_at,
       p.user_id AS profile_user_id, p.nisn, p.address, p.phone, p.parent_name, p.class_id,
       c.name AS class_name
FROM users u
LEFT JOIN student_profiles p ON p.user_id = u.id
LEFT JOIN classes c ON c.id = p.class_id`

const upsertProfile = `
INSERT INTO student_profiles (user_id, nisn, address, phone, parent_name, class_id)
VALUES (:user_id, :nisn, :address, :phone, :parent_name, :class_id)
ON CONFLICT (user_id) DO UPDATE
SET nisn = EXCLUDED.nisn,
    address = EXCLUDED.address,
    phone = EXCLUDED.phone,
    parent_name = EXCLUDED.parent_name,
    class_id = EXCLUDED.class_id`

type (
	userRow struct {
		ID           int64       `db:"id"`
		Name         string      `db:"name"`
		Email        string      `db:"email"`
		Role         string      `db:"role"`
		PasswordHash []byte      `db:"password_hash"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
		ProfileID    null.Int64  `db:"profile_user_id"`
		NISN         null.String `db:"nisn"`
		Address      null.String `db:"address"`
		Phone        null.String `db:"phone"`
		ParentName   null.String `db:"parent_name"`
		ClassID      null.Int64  `db:"class_id"`
		ClassName    null.String `db:"class_name"`
	}

	profileRow struct {
		UserID     int64       `db:"user_id"`
		NISN       null.String `db:"nisn"`
		Address    null.String `db:"address"`
		Phone      null.String `db:"phone"`
		ParentName null.String `db:"parent_name"`
		ClassID    null.Int64  `db:"class_id"`
	}
)

func (r userRow) unboil() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.ProfileID.Valid {
		usr.Profile = &user.StudentProfile{
			UserID:     r.ProfileID.Int64,
			NISN:       r.NISN.String,
			Address:    r.Address.String,
			Phone:      r.Phone.String,
			ParentName: r.ParentName.String,
			ClassID:    r.ClassID.Ptr(),
			ClassName:  r.ClassName.String,
		}
	}
	return usr
}

func boilProfile(userID int64, p user.StudentProfile) profileRow {
	return profileRow{
		UserID:     userID,
		NISN:       null.NewString(p.NISN, p.NISN != ""),
		Address:    null.NewString(p.Address, p.Address != ""),
		Phone:      null.NewString(p.Phone, p.Phone != ""),
		ParentName: null.NewString(p.ParentName, p.ParentName != ""),
		ClassID:    null.Int64FromPtr(p.ClassID),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, email, nisn string, excludeID int64) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewConflictError("email", user.ErrEmailExists)
	}
	if nisn == "" {
		return nil
	}

	err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM student_profiles WHERE nisn = $1 AND user_id <> $2)`, nisn, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking nisn uniqueness")
	}
	if exists {
		return core.NewConflictError("nisn", user.ErrNISNExists)
	}
	return nil
}

func insertUser(ctx context.Context, ext sqlx.ExtContext, usr user.User) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, ext, &id, `
		INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		usr.Name, usr.Email, usr.PasswordHash, usr.Role, usr.CreatedAt, usr.UpdatedAt,
	)
	return id, mapErr(err, "inserting user")
}

func saveProfile(ctx context.Context, ext sqlx.ExtContext, userID int64, p user.StudentProfile) error {
	_, err := sqlx.NamedExecContext(ctx, ext, upsertProfile, boilProfile(userID, p))
	return mapErr(err, "saving student profile")
}

func getUser(ctx context.Context, q sqlx.QueryerContext, where string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, selectUsers+" WHERE "+where, args...); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "selecting user")
	}
	return row.unboil(), nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insertUser(ctx, repo.db, usr)
	if err != nil {
		return user.User{}, err
	}
	usr.ID = id
	usr.Profile = nil
	return usr, nil
}

func (repo *userRepository) CreateStudent(ctx context.Context, usr user.User, profile user.StudentProfile) (user.User, error) {
	var created user.User
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		id, err := insertUser(ctx, tx, usr)
		if err != nil {
			return err
		}
		if err = saveProfile(ctx, tx, id, profile); err != nil {
			return err
		}
		created, err = getUser(ctx, tx, "u.id = $1", id)
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return created, nil
}

func (repo *userRepository) CreateStudents(ctx context.Context, students []user.Student) ([]user.User, error) {
	created := make([]user.User, 0, len(students))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, s := range students {
			id, err := insertUser(ctx, tx, s.User)
			if err != nil {
				return err
			}
			if err = saveProfile(ctx, tx, id, s.Profile); err != nil {
				return err
			}
			usr := s.User
			usr.ID = id
			profile := s.Profile
			profile.UserID = id
			usr.Profile = &profile
			created = append(created, usr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(u.name ILIKE $%[1]d OR u.email ILIKE $%[1]d)", len(args)))
	}
	if len(filter.Roles) > 0 {
		args = append(args, pq.Array(filter.Roles))
		conds = append(conds, fmt.Sprintf("u.role = ANY($%d)", len(args)))
	}

	q := selectUsers
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, "u.", user.OrderingFields, "u.created_at DESC, u.id DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unboil())
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	return getUser(ctx, repo.db, "u.id = $1", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return getUser(ctx, repo.db, "u.email = $1", email)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, profile *user.StudentProfile) (user.User, error) {
	var pwd interface{}
	if usr.PasswordHash != nil {
		pwd = usr.PasswordHash
	}

	var updated user.User
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET name = $1, email = $2, role = $3, password_hash = COALESCE($4, password_hash), updated_at = $5
			WHERE id = $6`,
			usr.Name, usr.Email, usr.Role, pwd, usr.UpdatedAt, usr.ID,
		)
		if err != nil {
			return mapErr(err, "updating user")
		}
		if err = checkAffected(res, user.ErrNotFound); err != nil {
			return err
		}
		if profile != nil {
			if err = saveProfile(ctx, tx, usr.ID, *profile); err != nil {
				return err
			}
		}
		updated, err = getUser(ctx, tx, "u.id = $1", usr.ID)
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "deleting user")
	}
	return checkAffected(res, user.ErrNotFound)
}

// orderBy renders orderings restricted to allowed fields, or def when none is usable.
func orderBy(ordering []core.DBOrdering, prefix string, allowed []string, def string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		for _, a := range allowed {
			if ord.Field == a {
				parts = append(parts, prefix+ord.String())
				break
			}
		}
	}
	if len(parts) == 0 {
		return def
	}
	return strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
