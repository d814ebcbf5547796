package school_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/school"
	inmemdb "github.com/sekolah-app/sekolah/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// mapCache is a core.Cache that counts hits.
type mapCache struct {
	items map[string][]byte
	hits  int
	fail  bool
}

func (c *mapCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	if c.fail {
		return false, errors.New("cache down")
	}
	b, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.fail {
		return errors.New("cache down")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = b
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func TestService_cache(t *testing.T) {
	ctx := context.Background()
	cache := &mapCache{items: make(map[string][]byte)}
	svc := school.NewService(inmemdb.NewSchoolRepository(inmemdb.Open()), cache, time.Minute, nopLogger{})

	_, err := svc.CreateClass(ctx, school.NewItem{Name: "X IPA 1"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		classes, err := svc.ListClasses(ctx)
		require.NoError(t, err)
		require.Len(t, classes, 1)
	}
	assert.Equal(t, 1, cache.hits)

	// writes invalidate
	_, err = svc.CreateClass(ctx, school.NewItem{Name: "XI IPS 2"})
	require.NoError(t, err)
	classes, err := svc.ListClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 2)

	// a failing cache falls through to the repository
	cache.fail = true
	subjects, err := svc.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestService_classesAndSubjects(t *testing.T) {
	ctx := context.Background()
	svc := school.NewService(inmemdb.NewSchoolRepository(inmemdb.Open()), nil, 0, nopLogger{})

	for _, name := range []string{"XII IPA 1", "x ipa 2", "X IPA 1"} {
		_, err := svc.CreateClass(ctx, school.NewItem{Name: name})
		require.NoError(t, err)
	}
	classes, err := svc.ListClasses(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"X IPA 1", "x ipa 2", "XII IPA 1"}, names)

	_, err = svc.CreateClass(ctx, school.NewItem{Name: "X IPA 1"})
	assert.True(t, core.IsConflict(err), "got %v", err)

	_, err = svc.GetClass(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)

	subject, err := svc.CreateSubject(ctx, school.NewItem{Name: "Fisika"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSubject(ctx, subject.ID))
	assert.ErrorIs(t, svc.DeleteSubject(ctx, subject.ID), core.ErrNotFound)
}
