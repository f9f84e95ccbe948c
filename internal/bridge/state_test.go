package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupersede_FirstCallHasNoPrevious(t *testing.T) {
	s := NewState()
	h, had := s.Supersede(context.Background(), "ses_1")
	require.False(t, had)
	require.False(t, h.Aborted())
}

func TestSupersede_SecondCallAbortsPrevious(t *testing.T) {
	s := NewState()
	first, _ := s.Supersede(context.Background(), "ses_1")
	second, had := s.Supersede(context.Background(), "ses_1")

	require.True(t, had)
	require.True(t, first.Aborted())
	require.Equal(t, AbortNewRequest, first.Reason)
	require.False(t, second.Aborted())
}

func TestClearCancelHandle_OnlyClearsMatchingHandle(t *testing.T) {
	s := NewState()
	first, _ := s.Supersede(context.Background(), "ses_1")
	second, _ := s.Supersede(context.Background(), "ses_1")

	s.ClearCancelHandle("ses_1", first) // stale, should be a no-op
	cur, ok := s.CancelHandleFor("ses_1")
	require.True(t, ok)
	require.Equal(t, second, cur)

	s.ClearCancelHandle("ses_1", second)
	_, ok = s.CancelHandleFor("ses_1")
	require.False(t, ok)
}

func TestPendingPermission_SetGetClear(t *testing.T) {
	s := NewState()
	_, ok := s.PendingPermissionFor("thread_1")
	require.False(t, ok)

	s.SetPendingPermission("thread_1", &PendingPermission{PermissionID: "perm_1"})
	p, ok := s.PendingPermissionFor("thread_1")
	require.True(t, ok)
	require.Equal(t, "perm_1", p.PermissionID)

	s.ClearPendingPermission("thread_1")
	_, ok = s.PendingPermissionFor("thread_1")
	require.False(t, ok)
}

func TestSeenPart_MarkAndCheck(t *testing.T) {
	s := NewState()
	require.False(t, s.SeenPart("part_1"))
	s.MarkPartSeen("part_1")
	require.True(t, s.SeenPart("part_1"))
}
