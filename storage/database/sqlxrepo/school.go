package sqlxrepo

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) QueryClasses(ctx context.Context) ([]school.Class, error) {
	classes := make([]school.Class, 0)
	err := repo.db.SelectContext(ctx, &classes, `SELECT id, name FROM classes ORDER BY lower(name), id`)
	return classes, errors.Wrap(err, "selecting classes")
}

func (repo *schoolRepository) GetClass(ctx context.Context, id int64) (school.Class, error) {
	var c school.Class
	err := repo.db.GetContext(ctx, &c, `SELECT id, name FROM classes WHERE id = $1`, id)
	return c, trapNoRows(err, school.ErrClassNotFound, "selecting class")
}

func (repo *schoolRepository) CreateClass(ctx context.Context, name string) (school.Class, error) {
	c := school.Class{Name: name}
	err := repo.db.GetContext(ctx, &c.ID, `INSERT INTO classes (name) VALUES ($1) RETURNING id`, name)
	if err != nil {
		return school.Class{}, mapErr(err, "inserting class")
	}
	return c, nil
}

func (repo *schoolRepository) DeleteClass(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "deleting class")
	}
	return checkAffected(res, school.ErrClassNotFound)
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context) ([]school.Subject, error) {
	subjects := make([]school.Subject, 0)
	err := repo.db.SelectContext(ctx, &subjects, `SELECT id, name FROM subjects ORDER BY lower(name), id`)
	return subjects, errors.Wrap(err, "selecting subjects")
}

func (repo *schoolRepository) GetSubject(ctx context.Context, id int64) (school.Subject, error) {
	var s school.Subject
	err := repo.db.GetContext(ctx, &s, `SELECT id, name FROM subjects WHERE id = $1`, id)
	return s, trapNoRows(err, school.ErrSubjectNotFound, "selecting subject")
}

func (repo *schoolRepository) CreateSubject(ctx context.Context, name string) (school.Subject, error) {
	s := school.Subject{Name: name}
	err := repo.db.GetContext(ctx, &s.ID, `INSERT INTO subjects (name) VALUES ($1) RETURNING id`, name)
	if err != nil {
		return school.Subject{}, mapErr(err, "inserting subject")
	}
	return s, nil
}

func (repo *schoolRepository) DeleteSubject(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "deleting subject")
	}
	return checkAffected(res, school.ErrSubjectNotFound)
}
