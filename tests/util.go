package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/user"
	"github.com/sekolah-app/sekolah/storage/database"
)

func init() {
	user.PasswordHashCost = bcrypt.MinCost
}

// PrepareDB connects to TEST_DATABASE_URL, rebuilds the schema and returns the handle.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, &core.Config{Database: core.DatabaseConfig{URL: dbURL}})
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.RunMigrations(db.DB, "reset"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd, role string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, nisn string, classID *int64) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{Name: name, Email: email, Role: user.RoleStudent, CreatedAt: now, UpdatedAt: now}
	if err := usr.SetPassword(nisn + "-pwd"); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	usr, err := repo.CreateStudent(context.Background(), usr, user.StudentProfile{NISN: nisn, ClassID: classID})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}
