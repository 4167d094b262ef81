package canvas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/merge"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/outbox"
	"github.com/and161185/brainboard/internal/viewport"
)

type fakeBackend struct {
	mu       sync.Mutex
	upserts  []model.Node
	bases    []int64
	deleted  []uuid.UUID
	edges    []model.Edge
	drawings []model.Drawing
	nodeErr  error
	delErr   error
	ver      map[uuid.UUID]int64
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend { return &fakeBackend{ver: map[uuid.UUID]int64{}} }

func (f *fakeBackend) UpsertNode(_ context.Context, n model.Node, baseVer int64) (model.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bases = append(f.bases, baseVer)
	if f.nodeErr != nil {
		return model.Node{}, f.nodeErr
	}
	f.ver[n.ID]++
	n.Ver = f.ver[n.ID]
	f.upserts = append(f.upserts, n)
	return n, nil
}

func (f *fakeBackend) DeleteNode(_ context.Context, _, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return f.nodeErr
	}
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) UpsertEdge(_ context.Context, e model.Edge) (model.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.Ver = 1
	f.edges = append(f.edges, e)
	return e, nil
}

func (f *fakeBackend) DeleteEdge(context.Context, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delErr
}

func (f *fakeBackend) CreateDrawing(_ context.Context, d model.Drawing) (model.Drawing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drawings = append(f.drawings, d)
	return d, nil
}

func (f *fakeBackend) DeleteDrawing(context.Context, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delErr
}

func (f *fakeBackend) setErr(err error) {
	f.mu.Lock()
	f.nodeErr = err
	f.mu.Unlock()
}

func setup(t *testing.T) (*Controller, *fakeBackend, *outbox.Queue) {
	t.Helper()
	c, be, q, _ := setupWithFailures(t)
	return c, be, q
}

func setupWithFailures(t *testing.T) (*Controller, *fakeBackend, *outbox.Queue, func() []outbox.Failure) {
	t.Helper()
	be := newFakeBackend()
	var (
		mu       sync.Mutex
		failures []outbox.Failure
	)
	q := outbox.New(outbox.Options{Retryer: outbox.NoRetry{}, OnFailure: func(f outbox.Failure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}})
	t.Cleanup(q.Close)
	c := NewController(uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), be, q, Options{})
	return c, be, q, func() []outbox.Failure {
		mu.Lock()
		defer mu.Unlock()
		return append([]outbox.Failure(nil), failures...)
	}
}

func flush(t *testing.T, q *outbox.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
}

func TestCreateNode_OptimisticWithDefaults(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)

	n, err := c.CreateNode(model.ChecklistPayload{Title: "today"}, model.Point{X: 10, Y: 20})
	require.NoError(t, err)
	got, ok := c.Node(n.ID)
	require.True(t, ok, "local state is updated before persistence")
	require.Equal(t, 300.0, got.Width)
	require.Equal(t, 360.0, got.Height)

	flush(t, q)
	require.Len(t, be.upserts, 1)
	require.Equal(t, []int64{0}, be.bases)
	got, _ = c.Node(n.ID)
	require.Equal(t, int64(1), got.Ver)
}

func TestCreateNode_InvalidPayloadMakesNoRequest(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)

	_, err := c.CreateNode(model.LinkPayload{URL: "not a url"}, model.Point{})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	flush(t, q)
	require.Empty(t, be.upserts)
	require.Empty(t, c.Nodes())
}

func TestDoubleClick_CreatesNoteAtLogicalPoint(t *testing.T) {
	t.Parallel()
	c, _, _ := setup(t)
	vp := viewport.Viewport{X: 100, Y: 50, Zoom: 2}

	n, err := c.DoubleClick(model.Point{X: 300, Y: 250}, vp)
	require.NoError(t, err)
	require.Equal(t, model.KindNote, n.Kind)
	require.InDelta(t, 100.0, n.X, 1e-9)
	require.InDelta(t, 100.0, n.Y, 1e-9)
}

func TestGesture_UpdatesAreVisualUntilEnd(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	n, err := c.CreateNode(model.NotePayload{HTML: "<p>x</p>"}, model.Point{})
	require.NoError(t, err)
	flush(t, q)

	require.NoError(t, c.BeginMove(n.ID))
	for i := 1; i <= 20; i++ {
		require.NoError(t, c.MoveTo(n.ID, model.Point{X: float64(i), Y: float64(2 * i)}))
	}
	flush(t, q)
	require.Len(t, be.upserts, 1, "drag updates are not persisted")

	require.NoError(t, c.EndMove(n.ID))
	flush(t, q)
	require.Len(t, be.upserts, 2)
	require.Equal(t, 20.0, be.upserts[1].X)
	require.Equal(t, 40.0, be.upserts[1].Y)
	require.Equal(t, []int64{0, 1}, be.bases)

	require.NoError(t, c.BeginResize(n.ID))
	require.NoError(t, c.ResizeTo(n.ID, 5, 500))
	require.ErrorIs(t, c.MoveTo(n.ID, model.Point{}), errs.ErrInvalidArgument)
	require.NoError(t, c.EndResize(n.ID))
	flush(t, q)
	require.Len(t, be.upserts, 3)
	require.Equal(t, float64(MinNodeSize), be.upserts[2].Width)
}

func TestGesture_EndWithoutChangeSkipsWrite(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	n, _ := c.CreateNode(model.NotePayload{}, model.Point{X: 1, Y: 1})
	flush(t, q)

	require.NoError(t, c.BeginMove(n.ID))
	require.NoError(t, c.MoveTo(n.ID, model.Point{X: 9, Y: 9}))
	require.NoError(t, c.MoveTo(n.ID, model.Point{X: 1, Y: 1}))
	require.NoError(t, c.EndMove(n.ID))
	flush(t, q)
	require.Len(t, be.upserts, 1)

	require.ErrorIs(t, c.EndMove(n.ID), errs.ErrInvalidArgument)
}

func TestFailedUpdateRevertsToConfirmed(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	n, _ := c.CreateNode(model.NotePayload{HTML: "v1"}, model.Point{})
	flush(t, q)

	be.setErr(errs.ErrVersionConflict)
	_, err := c.EditNote(n.ID, "v2")
	require.NoError(t, err)
	got, _ := c.Node(n.ID)
	require.Equal(t, "v2", got.Payload.(model.NotePayload).HTML)

	flush(t, q)
	got, _ = c.Node(n.ID)
	require.Equal(t, "v1", got.Payload.(model.NotePayload).HTML)
}

func TestFailedCreateRemovesNode(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	be.setErr(errs.ErrForbidden)
	n, err := c.CreateNode(model.NotePayload{}, model.Point{})
	require.NoError(t, err)
	flush(t, q)
	_, ok := c.Node(n.ID)
	require.False(t, ok)
}

func TestDeleteNode_PrunesEdges(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	a, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	b, _ := c.CreateNode(model.NotePayload{}, model.Point{X: 300})
	d, _ := c.CreateNode(model.NotePayload{}, model.Point{X: 600})
	_, err := c.Connect(a.ID, "right", b.ID, "left")
	require.NoError(t, err)
	keep, err := c.Connect(b.ID, "", d.ID, "")
	require.NoError(t, err)
	flush(t, q)

	require.NoError(t, c.DeleteNode(a.ID))
	edges := c.Edges()
	require.Len(t, edges, 1)
	require.Equal(t, keep.ID, edges[0].ID)
	flush(t, q)
	require.Equal(t, []uuid.UUID{a.ID}, be.deleted)
}

func TestDeleteNode_FailureRestoresNodeAndEdges(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	a, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	b, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	_, err := c.Connect(a.ID, "", b.ID, "")
	require.NoError(t, err)
	flush(t, q)

	be.setErr(errs.ErrForbidden)
	require.NoError(t, c.DeleteNode(a.ID))
	flush(t, q)
	_, ok := c.Node(a.ID)
	require.True(t, ok)
	require.Len(t, c.Edges(), 1)
}

func TestConnect_RejectsDanglingEndpoints(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	a, _ := c.CreateNode(model.NotePayload{}, model.Point{})

	_, err := c.Connect(a.ID, "", uuid.Must(uuid.NewV4()), "")
	require.ErrorIs(t, err, errs.ErrDanglingEdge)
	flush(t, q)
	require.Empty(t, be.edges)
	require.Empty(t, c.Edges())
}

func TestStroke_CommitAndDiscard(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	vp := viewport.Viewport{X: 10, Y: 10, Zoom: 0.5}

	_, ok, err := c.EndStroke()
	require.NoError(t, err)
	require.False(t, ok, "no stroke in progress")

	require.NoError(t, c.BeginStroke(model.Point{X: 10, Y: 10}, vp, "#000", 2))
	c.ExtendStroke(model.Point{X: 20, Y: 10}, vp)
	c.ExtendStroke(model.Point{X: 20, Y: 10}, vp)
	c.ExtendStroke(model.Point{X: 20, Y: 30}, vp)
	require.Len(t, c.CurrentStroke(), 3)

	d, ok, err := c.EndStroke()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []model.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 40}}, d.Points)
	require.Nil(t, c.CurrentStroke())
	flush(t, q)
	require.Len(t, be.drawings, 1)
	require.Len(t, c.Drawings(), 1)

	require.ErrorIs(t, c.BeginStroke(model.Point{}, vp, "#000", 0), errs.ErrInvalidArgument)
}

func TestApplyChange_RoutesAndDeduplicates(t *testing.T) {
	t.Parallel()
	c, _, q := setup(t)
	a, _ := c.CreateNode(model.NotePayload{HTML: "mine"}, model.Point{})
	flush(t, q)

	ins, err := model.NewChange(c.BoardID(), model.EntityNode, model.EventInsert, a, nil)
	require.NoError(t, err)
	out, err := c.ApplyChange(ins)
	require.NoError(t, err)
	require.Equal(t, merge.Ignored, out)
	require.Len(t, c.Nodes(), 1)

	remote := a
	remote.Ver = 2
	remote.Payload = model.NotePayload{HTML: "theirs"}
	upd, _ := model.NewChange(c.BoardID(), model.EntityNode, model.EventUpdate, remote, nil)
	out, err = c.ApplyChange(upd)
	require.NoError(t, err)
	require.Equal(t, merge.Updated, out)
	got, _ := c.Node(a.ID)
	require.Equal(t, "theirs", got.Payload.(model.NotePayload).HTML)

	other := model.Node{ID: uuid.Must(uuid.NewV4())}
	del, _ := model.NewChange(c.BoardID(), model.EntityNode, model.EventDelete, nil, model.Ref{ID: other.ID})
	out, err = c.ApplyChange(del)
	require.NoError(t, err)
	require.Equal(t, merge.Ignored, out)

	_, err = c.ApplyChange(model.Change{Entity: model.EntityChecklistItem, Type: model.EventInsert})
	require.Error(t, err)
}

func TestApplyChange_RemoteDeletePrunesEdges(t *testing.T) {
	t.Parallel()
	c, _, q := setup(t)
	a, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	b, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	_, err := c.Connect(a.ID, "", b.ID, "")
	require.NoError(t, err)
	flush(t, q)

	del, _ := model.NewChange(c.BoardID(), model.EntityNode, model.EventDelete, nil, model.Ref{ID: b.ID})
	out, err := c.ApplyChange(del)
	require.NoError(t, err)
	require.Equal(t, merge.Deleted, out)
	require.Empty(t, c.Edges())
}

func TestRemoteUpdateAdvancesBaseVersion(t *testing.T) {
	t.Parallel()
	c, be, q := setup(t)
	a, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	flush(t, q)

	remote, _ := c.Node(a.ID)
	remote.Ver = 7
	upd, _ := model.NewChange(c.BoardID(), model.EntityNode, model.EventUpdate, remote, nil)
	_, err := c.ApplyChange(upd)
	require.NoError(t, err)

	_, err = c.SetColor(a.ID, "#ff0")
	require.NoError(t, err)
	flush(t, q)
	require.Equal(t, []int64{0, 7}, be.bases)
}

func TestStaleEchoDoesNotRewindBaseVersion(t *testing.T) {
	t.Parallel()
	c, be, q, failures := setupWithFailures(t)
	n, err := c.CreateNode(model.NotePayload{HTML: "a"}, model.Point{})
	require.NoError(t, err)
	flush(t, q)
	_, err = c.EditNote(n.ID, "b")
	require.NoError(t, err)
	flush(t, q)

	first := be.upserts[0]
	require.Equal(t, int64(1), first.Ver)
	for _, typ := range []model.EventType{model.EventInsert, model.EventUpdate} {
		ch, err := model.NewChange(c.BoardID(), model.EntityNode, typ, first, nil)
		require.NoError(t, err)
		out, err := c.ApplyChange(ch)
		require.NoError(t, err)
		require.Equal(t, merge.Ignored, out, typ)
	}
	got, _ := c.Node(n.ID)
	require.Equal(t, "b", got.Payload.(model.NotePayload).HTML)
	require.Equal(t, int64(2), got.Ver)

	_, err = c.EditNote(n.ID, "c")
	require.NoError(t, err)
	flush(t, q)

	require.Equal(t, []int64{0, 1, 2}, be.bases)
	require.Empty(t, failures())
	got, _ = c.Node(n.ID)
	require.Equal(t, "c", got.Payload.(model.NotePayload).HTML)
	require.Equal(t, int64(3), got.Ver)
}

func TestDeletesOfRemotelyDeletedRowsSucceed(t *testing.T) {
	t.Parallel()
	c, be, q, failures := setupWithFailures(t)
	a, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	b, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	e, err := c.Connect(a.ID, "", b.ID, "")
	require.NoError(t, err)
	vp := viewport.Identity()
	require.NoError(t, c.BeginStroke(model.Point{X: 1, Y: 1}, vp, "#000", 2))
	d, ok, err := c.EndStroke()
	require.NoError(t, err)
	require.True(t, ok)
	flush(t, q)

	be.mu.Lock()
	be.delErr = errs.ErrNotFound
	be.mu.Unlock()

	require.NoError(t, c.RemoveEdge(e.ID))
	require.NoError(t, c.DeleteDrawing(d.ID))
	require.NoError(t, c.DeleteNode(a.ID))
	flush(t, q)

	require.Empty(t, failures())
	_, ok = c.Node(a.ID)
	require.False(t, ok, "no ghost node after a concurrent delete")
	require.Empty(t, c.Edges())
	require.Empty(t, c.Drawings())
	require.Len(t, c.Nodes(), 1)
}

func TestEditPayload_WrongKind(t *testing.T) {
	t.Parallel()
	c, _, _ := setup(t)
	n, _ := c.CreateNode(model.NotePayload{}, model.Point{})
	_, err := c.SetVideoPosition(n.ID, 12)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = c.EditNote(uuid.Must(uuid.NewV4()), "x")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
