package flowstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "flows.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func login() []command.Command {
	return []command.Command{
		command.Click{Selector: "#login"},
		command.Set{Selector: "#user", Value: "alice"},
		command.WaitFor(".dashboard", 3*time.Second),
		command.Shortcut{Key: "s", Modifiers: command.Ctrl},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.SaveFlow(ctx, "  login ", "example.test", login())
			require.NoError(t, err)
			_, err = uuid.Parse(id)
			require.NoError(t, err)

			f, err := s.GetFlow(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "login", f.Name)
			assert.Equal(t, "example.test", f.Domain)
			assert.Equal(t, command.List(login()), f.Commands)
			assert.Len(t, f.Checksum, 64)
			assert.False(t, f.CreatedAt.IsZero())

			require.NoError(t, s.DeleteFlow(ctx, id))
			_, err = s.GetFlow(ctx, id)
			assert.ErrorIs(t, err, ErrFlowNotFound)
			assert.ErrorIs(t, s.DeleteFlow(ctx, id), ErrFlowNotFound)
		})
	}
}

func TestStoreDeduplicates(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := s.SaveFlow(ctx, "login", "example.test", login())
			require.NoError(t, err)
			again, err := s.SaveFlow(ctx, "login", "example.test", login())
			require.NoError(t, err)
			assert.Equal(t, first, again)

			other, err := s.SaveFlow(ctx, "login", "other.test", login())
			require.NoError(t, err)
			assert.NotEqual(t, first, other)

			changed := append(login(), command.KeyPress{Key: "Enter"})
			third, err := s.SaveFlow(ctx, "login", "example.test", changed)
			require.NoError(t, err)
			assert.NotEqual(t, first, third)

			all, err := s.ListFlows(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			scoped, err := s.ListFlows(ctx, "example.test")
			require.NoError(t, err)
			assert.Len(t, scoped, 2)
			for _, f := range scoped {
				assert.Equal(t, "example.test", f.Domain)
			}
		})
	}
}

func TestStoreRejectsBadInput(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.SaveFlow(ctx, "  ", "d", login())
			assert.ErrorIs(t, err, ErrInvalidName)
			_, err = s.SaveFlow(ctx, "two\nlines", "d", login())
			assert.ErrorIs(t, err, ErrInvalidName)
			_, err = s.SaveFlow(ctx, "bad", "d", []command.Command{command.Click{}})
			assert.ErrorIs(t, err, command.ErrEmptySelector)

			_, err = s.GetFlow(ctx, "no such id")
			assert.ErrorIs(t, err, ErrFlowNotFound)
		})
	}
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	ctx := context.Background()
	a, _ := s.SaveFlow(ctx, "a", "", login())
	b, _ := s.SaveFlow(ctx, "b", "", login())

	flows, err := s.ListFlows(ctx, "")
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, b, flows[0].ID)
	assert.Equal(t, a, flows[1].ID)

	// returned flows are copies
	flows[0].Commands[0] = command.Click{Selector: "#mutated"}
	f, _ := s.GetFlow(ctx, b)
	assert.Equal(t, command.Click{Selector: "#login"}, f.Commands[0])
}

func TestChecksumIsStable(t *testing.T) {
	a, err := Checksum(login())
	require.NoError(t, err)
	b, err := Checksum(login())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Checksum(login()[:2])
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
