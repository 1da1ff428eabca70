package ioc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type disposeRecorder struct {
	order []string
}

type disposableRepo struct {
	rec *disposeRecorder
}

func (r *disposableRepo) Dispose() error {
	r.rec.order = append(r.rec.order, "repo")
	return nil
}

type disposableService struct {
	repo *disposableRepo
	rec  *disposeRecorder
}

func (s *disposableService) Dispose() error {
	s.rec.order = append(s.rec.order, "service")
	return nil
}

type failingDisposable struct{}

func (failingDisposable) Dispose() error {
	return errors.New("close failed")
}

func newDisposableContainer(t *testing.T) (*Container, *disposeRecorder) {
	t.Helper()
	c := newTestContainer()
	rec := &disposeRecorder{}
	require.NoError(t, RegisterInstanceOf(c, rec, nil))

	f := c.Factory()
	require.NoError(t, f.AddConstructor(func(rec *disposeRecorder) *disposableRepo {
		return &disposableRepo{rec: rec}
	}))
	require.NoError(t, f.AddConstructor(func(repo *disposableRepo, rec *disposeRecorder) *disposableService {
		return &disposableService{repo: repo, rec: rec}
	}))
	require.NoError(t, RegisterType[*disposableRepo, *disposableRepo](c))
	require.NoError(t, RegisterType[*disposableService, *disposableService](c))
	return c, rec
}

func TestDispose_ReverseCreationOrder(t *testing.T) {
	c, rec := newDisposableContainer(t)
	_, err := Resolve[*disposableService](c)
	require.NoError(t, err)

	require.NoError(t, c.Dispose())

	assert.Equal(t, []string{"service", "repo"}, rec.order)
}

func TestDispose_TransientsAreNotTracked(t *testing.T) {
	c, rec := newDisposableContainer(t)
	require.NoError(t, RegisterType[*disposableRepo, *disposableRepo](c, AsTransient()))

	_, err := Resolve[*disposableRepo](c)
	require.NoError(t, err)
	require.NoError(t, c.Dispose())

	assert.Empty(t, rec.order)
}

func TestDispose_RejectsFurtherUse(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, RegisterType[Logger, *ConsoleLogger](c))
	require.NoError(t, c.Dispose())

	_, err := Resolve[Logger](c)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, RegisterType[Logger, *ConsoleLogger](c), ErrDisposed)
	assert.ErrorIs(t, c.Factory().AddConstructor(newWidgetInt), ErrDisposed)
	assert.ErrorIs(t, c.Validate(), ErrDisposed)
	assert.False(t, IsRegisteredType[Logger](c))
	assert.Nil(t, c.ResolveAll(TypeOf[Logger]()))

	_, err = c.Resolver().Resolve(TypeOf[Logger](), nil)
	assert.ErrorIs(t, err, ErrDisposed)

	assert.NoError(t, c.Dispose(), "Dispose is idempotent")
}

func TestDispose_CollectsErrors(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.RegisterInstance(TypeOf[Disposable](), failingDisposable{}, "a"))
	require.NoError(t, c.RegisterInstance(TypeOf[Disposable](), failingDisposable{}, "b"))

	err := c.Dispose()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
	assert.Len(t, err.(interface{ Unwrap() []error }).Unwrap(), 2)
}

func TestDispose_SharedInstanceOnce(t *testing.T) {
	c := newTestContainer()
	rec := &disposeRecorder{}
	repo := &disposableRepo{rec: rec}
	require.NoError(t, c.RegisterInstance(TypeOf[*disposableRepo](), repo, nil))
	require.NoError(t, c.RegisterInstance(TypeOf[Disposable](), repo, nil))

	require.NoError(t, c.Dispose())
	assert.Equal(t, []string{"repo"}, rec.order)
}
