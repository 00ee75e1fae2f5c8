package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, o Options) *Store {
	t.Helper()
	log, _ := test.NewNullLogger()
	o.Logger = log
	s, err := Open(o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTest(t, Options{})

	obj, err := s.Put(Object{Name: "encoded_image.png", ContentType: "image/png"}, []byte("png bytes"))
	require.NoError(t, err)
	_, err = uuid.Parse(obj.ID)
	require.NoError(t, err)
	require.Equal(t, 9, obj.Size)

	got, b, err := s.Get(obj.ID)
	require.NoError(t, err)
	require.Equal(t, "png bytes", string(b))
	require.Equal(t, obj.Name, got.Name)
	require.Equal(t, obj.ContentType, got.ContentType)
	require.True(t, obj.Created.Equal(got.Created))
}

func TestPutAssignsDistinctIDs(t *testing.T) {
	s := openTest(t, Options{})
	a, err := s.Put(Object{Name: "a"}, []byte("x"))
	require.NoError(t, err)
	b, err := s.Put(Object{Name: "a"}, []byte("y"))
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	_, got, err := s.Get(a.ID)
	require.NoError(t, err)
	require.Equal(t, "x", string(got))
}

func TestGetMissing(t *testing.T) {
	s := openTest(t, Options{})
	_, _, err := s.Get(uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Get("../../etc/passwd")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTest(t, Options{})
	obj, err := s.Put(Object{Name: "a"}, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(obj.ID))
	_, _, err = s.Get(obj.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Delete(obj.ID), ErrNotFound)
	require.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestExpiry(t *testing.T) {
	s := openTest(t, Options{TTL: time.Second})
	obj, err := s.Put(Object{Name: "a"}, []byte("x"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _, err := s.Get(obj.ID)
		return err == ErrNotFound
	}, 5*time.Second, 100*time.Millisecond)
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Path: dir})
	require.NoError(t, err)
	obj, err := s.Put(Object{Name: "a"}, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openTest(t, Options{Path: dir})
	_, b, err := s.Get(obj.ID)
	require.NoError(t, err)
	require.Equal(t, "persisted", string(b))
}
