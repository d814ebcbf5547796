package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
)

const (
	classesCacheKey  = "school:classes"
	subjectsCacheKey = "school:subjects"
)

var (
	ErrClassNotFound   = errors.Wrap(core.ErrNotFound, "class")
	ErrSubjectNotFound = errors.Wrap(core.ErrNotFound, "subject")
)

type (
	Repository interface {
		QueryClasses(ctx context.Context) ([]Class, error)
		GetClass(ctx context.Context, id int64) (Class, error)
		CreateClass(ctx context.Context, name string) (Class, error)
		DeleteClass(ctx context.Context, id int64) error

		QuerySubjects(ctx context.Context) ([]Subject, error)
		GetSubject(ctx context.Context, id int64) (Subject, error)
		CreateSubject(ctx context.Context, name string) (Subject, error)
		DeleteSubject(ctx context.Context, id int64) error
	}

	Service interface {
		ListClasses(ctx context.Context) ([]Class, error)
		GetClass(ctx context.Context, id int64) (Class, error)
		CreateClass(ctx context.Context, ni NewItem) (Class, error)
		DeleteClass(ctx context.Context, id int64) error

		ListSubjects(ctx context.Context) ([]Subject, error)
		GetSubject(ctx context.Context, id int64) (Subject, error)
		CreateSubject(ctx context.Context, ni NewItem) (Subject, error)
		DeleteSubject(ctx context.Context, id int64) error
	}

	service struct {
		repo   Repository
		cache  core.Cache
		ttl    time.Duration
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService returns the reference data service. Lists are cached for ttl;
// cache failures are logged and fall through to the repository.
func NewService(repo Repository, cache core.Cache, ttl time.Duration, logger core.Logger) Service {
	return &service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func (svc *service) ListClasses(ctx context.Context) ([]Class, error) {
	var classes []Class
	if svc.fromCache(ctx, classesCacheKey, &classes) {
		return classes, nil
	}
	classes, err := svc.repo.QueryClasses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	svc.toCache(ctx, classesCacheKey, classes)
	return classes, nil
}

func (svc *service) GetClass(ctx context.Context, id int64) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) CreateClass(ctx context.Context, ni NewItem) (Class, error) {
	class, err := svc.repo.CreateClass(ctx, ni.Name)
	if err != nil {
		return Class{}, err
	}
	svc.invalidate(ctx, classesCacheKey)
	return class, nil
}

func (svc *service) DeleteClass(ctx context.Context, id int64) error {
	if err := svc.repo.DeleteClass(ctx, id); err != nil {
		return err
	}
	svc.invalidate(ctx, classesCacheKey)
	return nil
}

func (svc *service) ListSubjects(ctx context.Context) ([]Subject, error) {
	var subjects []Subject
	if svc.fromCache(ctx, subjectsCacheKey, &subjects) {
		return subjects, nil
	}
	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	svc.toCache(ctx, subjectsCacheKey, subjects)
	return subjects, nil
}

func (svc *service) GetSubject(ctx context.Context, id int64) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) CreateSubject(ctx context.Context, ni NewItem) (Subject, error) {
	subject, err := svc.repo.CreateSubject(ctx, ni.Name)
	if err != nil {
		return Subject{}, err
	}
	svc.invalidate(ctx, subjectsCacheKey)
	return subject, nil
}

func (svc *service) DeleteSubject(ctx context.Context, id int64) error {
	if err := svc.repo.DeleteSubject(ctx, id); err != nil {
		return err
	}
	svc.invalidate(ctx, subjectsCacheKey)
	return nil
}

func (svc *service) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if svc.cache == nil {
		return false
	}
	found, err := svc.cache.Get(ctx, key, dest)
	if err != nil {
		svc.logger.Warn("cache get "+key, err)
		return false
	}
	return found
}

func (svc *service) toCache(ctx context.Context, key string, value interface{}) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Set(ctx, key, value, svc.ttl); err != nil {
		svc.logger.Warn("cache set "+key, err)
	}
}

func (svc *service) invalidate(ctx context.Context, key string) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, key); err != nil {
		svc.logger.Warn("cache delete "+key, err)
	}
}
