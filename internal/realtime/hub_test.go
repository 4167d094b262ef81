package realtime

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

func change(t *testing.T, board uuid.UUID, entity model.EntityKind, node uuid.UUID) model.Change {
	t.Helper()
	ch, err := model.NewChange(board, entity, model.EventUpdate, model.Ref{ID: uuid.Must(uuid.NewV4())}, nil)
	require.NoError(t, err)
	ch.NodeID = node
	return ch
}

func recv(t *testing.T, s *Subscription) model.Change {
	t.Helper()
	select {
	case ch, ok := <-s.C:
		require.True(t, ok, "subscription closed")
		return ch
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}
	return model.Change{}
}

func TestHub_PublishStampsAndDelivers(t *testing.T) {
	t.Parallel()
	h := NewHub(Options{})
	board := uuid.Must(uuid.NewV4())
	s := h.Subscribe(board, Filter{})
	other := h.Subscribe(uuid.Must(uuid.NewV4()), Filter{})

	first := h.Publish(change(t, board, model.EntityNode, uuid.Nil))
	second := h.Publish(change(t, board, model.EntityEdge, uuid.Nil))

	_, err := ulid.ParseStrict(first.ID)
	require.NoError(t, err)
	require.Less(t, first.ID, second.ID)
	require.False(t, first.At.IsZero())

	require.Equal(t, first.ID, recv(t, s).ID)
	require.Equal(t, second.ID, recv(t, s).ID)
	require.Empty(t, other.C)
}

func TestHub_Filter(t *testing.T) {
	t.Parallel()
	h := NewHub(Options{})
	board, node := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	items := h.Subscribe(board, Filter{Entities: []model.EntityKind{model.EntityChecklistItem}, NodeID: node})

	h.Publish(change(t, board, model.EntityNode, uuid.Nil))
	h.Publish(change(t, board, model.EntityChecklistItem, uuid.Must(uuid.NewV4())))
	want := h.Publish(change(t, board, model.EntityChecklistItem, node))

	require.Equal(t, want.ID, recv(t, items).ID)
	require.Empty(t, items.C)
}

func TestHub_SlowConsumerDropped(t *testing.T) {
	t.Parallel()
	h := NewHub(Options{Buffer: 1})
	board := uuid.Must(uuid.NewV4())
	slow := h.Subscribe(board, Filter{})
	fast := h.Subscribe(board, Filter{})

	h.Publish(change(t, board, model.EntityNode, uuid.Nil))
	recv(t, fast)
	h.Publish(change(t, board, model.EntityNode, uuid.Nil))

	<-slow.C
	_, ok := <-slow.C
	require.False(t, ok)
	require.ErrorIs(t, slow.Err(), ErrSlowConsumer)
	require.Equal(t, 1, h.Subscribers(board))
	recv(t, fast)
}

func TestHub_CloseAndShutdown(t *testing.T) {
	t.Parallel()
	h := NewHub(Options{})
	board := uuid.Must(uuid.NewV4())
	a := h.Subscribe(board, Filter{})
	b := h.Subscribe(board, Filter{})

	a.Close()
	a.Close()
	_, ok := <-a.C
	require.False(t, ok)
	require.NoError(t, a.Err())

	h.Close()
	_, ok = <-b.C
	require.False(t, ok)
	require.ErrorIs(t, b.Err(), ErrHubClosed)

	late := h.Subscribe(board, Filter{})
	_, ok = <-late.C
	require.False(t, ok)
	require.ErrorIs(t, late.Err(), ErrHubClosed)
	h.Publish(change(t, board, model.EntityNode, uuid.Nil))
}

func TestParseFilter(t *testing.T) {
	t.Parallel()
	node := uuid.Must(uuid.NewV4())
	f, err := ParseFilter([]string{"checklist_item", "cursor"}, node)
	require.NoError(t, err)
	require.Equal(t, []model.EntityKind{model.EntityChecklistItem, model.EntityCursor}, f.Entities)
	require.Equal(t, node, f.NodeID)

	f, err = ParseFilter(nil, uuid.Nil)
	require.NoError(t, err)
	require.Empty(t, f.Entities)

	_, err = ParseFilter([]string{"node", "comment"}, uuid.Nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}
