package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goa-design/agentswarm/store"
)

func TestWorkspaceStoreCreateGetDelete(t *testing.T) {
	s := store.NewWorkspaceStore()
	w := s.Create()
	require.NotEmpty(t, w.ID)
	require.False(t, w.CreatedAt.IsZero())

	got, err := s.Get(w.ID)
	require.NoError(t, err)
	require.Equal(t, w, got)

	require.NoError(t, s.Delete(w.ID))
	_, err = s.Get(w.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkspaceStoreDeleteUnknownReturnsNotFound(t *testing.T) {
	s := store.NewWorkspaceStore()
	require.ErrorIs(t, s.Delete("no-such-id"), store.ErrNotFound)
}

func TestWorkspaceStoreListIsCreationOrdered(t *testing.T) {
	s := store.NewWorkspaceStore()
	a := s.Create()
	b := s.Create()
	c := s.Create()

	list := s.List()
	require.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	require.NoError(t, s.Delete(b.ID))
	list = s.List()
	require.Equal(t, []string{a.ID, c.ID}, []string{list[0].ID, list[1].ID})
}
