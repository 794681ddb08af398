package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/store"
)

type countingFinder struct {
	store.Store
	calls int
}

func (c *countingFinder) FindByName(ctx context.Context, kind store.Kind, name string) (store.Record, error) {
	c.calls++
	return c.Store.FindByName(ctx, kind, name)
}

func TestResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	created, err := s.Create(ctx, store.KindCourse, store.Fields{"name": "Biology", "course_code": "BIO-101"})
	require.NoError(t, err)

	finder := &countingFinder{Store: s}
	r := New(finder)

	id, err := r.Resolve(ctx, store.KindCourse, "Biology")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), id)

	// No caching: a second resolve hits the store again.
	_, err = r.Resolve(ctx, store.KindCourse, "Biology")
	require.NoError(t, err)
	assert.Equal(t, 2, finder.calls)

	// A renamed record is no longer found under its old name.
	_, err = s.Update(ctx, store.KindCourse, id, store.Fields{"name": "Biology I"})
	require.NoError(t, err)
	_, err = r.Resolve(ctx, store.KindCourse, "Biology")
	require.Error(t, err)
	assert.Equal(t, kerrors.CodeEntityNotFound, kerrors.CodeOf(err))
	assert.Equal(t, "Course not found", kerrors.As(err).Message)
}

type failingFinder struct{}

func (failingFinder) FindByName(context.Context, store.Kind, string) (store.Record, error) {
	return nil, errors.New("disk on fire")
}

func TestResolveInfrastructureError(t *testing.T) {
	_, err := New(failingFinder{}).Resolve(context.Background(), store.KindTeacher, "x")
	require.Error(t, err)
	assert.Equal(t, kerrors.CodeInternal, kerrors.CodeOf(err))
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "Teacher", EntityLabel(store.KindTeacher))
	assert.Equal(t, "Entity", EntityLabel(""))
}
