package service

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/analyze"
	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/limiter"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
	"github.com/and161185/brainboard/internal/repository"
)

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastKey      limiter.Key
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, k limiter.Key) (bool, time.Duration, error) {
	l.allowCalls++
	l.lastKey = k
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, limiter.Key) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, limiter.Key) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakeBoards struct {
	boards  map[uuid.UUID]model.Board
	members map[[2]uuid.UUID]model.Role
	invites map[uuid.UUID]model.Invite
}

var _ repository.BoardRepository = (*fakeBoards)(nil)

func newFakeBoards() *fakeBoards {
	return &fakeBoards{
		boards:  map[uuid.UUID]model.Board{},
		members: map[[2]uuid.UUID]model.Role{},
		invites: map[uuid.UUID]model.Invite{},
	}
}

// seed creates a board owned by owner and returns its id.
func (f *fakeBoards) seed(owner uuid.UUID, members map[uuid.UUID]model.Role) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	f.boards[id] = model.Board{ID: id, OwnerID: owner, Title: "b", CreatedAt: time.Now()}
	f.members[[2]uuid.UUID{id, owner}] = model.RoleOwner
	for u, r := range members {
		f.members[[2]uuid.UUID{id, u}] = r
	}
	return id
}

func (f *fakeBoards) Create(_ context.Context, b *model.Board) error {
	b.CreatedAt = time.Now()
	f.boards[b.ID] = *b
	f.members[[2]uuid.UUID{b.ID, b.OwnerID}] = model.RoleOwner
	return nil
}
func (f *fakeBoards) Get(_ context.Context, id uuid.UUID) (*model.Board, error) {
	b, ok := f.boards[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &b, nil
}
func (f *fakeBoards) ListForUser(_ context.Context, userID uuid.UUID) ([]model.Board, error) {
	out := []model.Board{}
	for k := range f.members {
		if k[1] == userID {
			out = append(out, f.boards[k[0]])
		}
	}
	return out, nil
}
func (f *fakeBoards) Role(_ context.Context, boardID, userID uuid.UUID) (model.Role, error) {
	r, ok := f.members[[2]uuid.UUID{boardID, userID}]
	if !ok {
		return "", errs.ErrNotFound
	}
	return r, nil
}
func (f *fakeBoards) AddMember(_ context.Context, m model.Member) (model.Role, error) {
	k := [2]uuid.UUID{m.BoardID, m.UserID}
	if cur, ok := f.members[k]; ok && cur.Rank() >= m.Role.Rank() {
		return cur, nil
	}
	f.members[k] = m.Role
	return m.Role, nil
}
func (f *fakeBoards) CreateInvite(_ context.Context, inv *model.Invite) error {
	inv.CreatedAt = time.Now()
	f.invites[inv.ID] = *inv
	return nil
}
func (f *fakeBoards) GetInvite(_ context.Context, id uuid.UUID) (*model.Invite, error) {
	inv, ok := f.invites[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &inv, nil
}
func (f *fakeBoards) GetInviteByToken(_ context.Context, token string) (*model.Invite, error) {
	for _, inv := range f.invites {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeBoards) ListInvites(_ context.Context, boardID uuid.UUID) ([]model.Invite, error) {
	out := []model.Invite{}
	for _, inv := range f.invites {
		if inv.BoardID == boardID {
			out = append(out, inv)
		}
	}
	return out, nil
}
func (f *fakeBoards) DeleteInvite(_ context.Context, id uuid.UUID) error {
	delete(f.invites, id)
	return nil
}

// fakeCanvas keeps one board's worth of rows and mimics the version rules of the
// postgres repository.
type fakeCanvas struct {
	nodes    map[uuid.UUID]model.Node
	edges    map[uuid.UUID]model.Edge
	drawings map[uuid.UUID]model.Drawing
}

var _ repository.CanvasRepository = (*fakeCanvas)(nil)

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{
		nodes:    map[uuid.UUID]model.Node{},
		edges:    map[uuid.UUID]model.Edge{},
		drawings: map[uuid.UUID]model.Drawing{},
	}
}

func (f *fakeCanvas) ListNodes(_ context.Context, boardID uuid.UUID) ([]model.Node, error) {
	out := []model.Node{}
	for _, n := range f.nodes {
		if n.BoardID == boardID {
			out = append(out, n)
		}
	}
	return out, nil
}
func (f *fakeCanvas) GetNode(_ context.Context, boardID, id uuid.UUID) (*model.Node, error) {
	n, ok := f.nodes[id]
	if !ok || n.BoardID != boardID {
		return nil, errs.ErrNotFound
	}
	return &n, nil
}
func (f *fakeCanvas) UpsertNode(_ context.Context, n model.Node, baseVer int64) (model.Node, bool, error) {
	cur, ok := f.nodes[n.ID]
	switch {
	case !ok && baseVer != 0:
		return model.Node{}, false, errs.ErrVersionConflict
	case ok && cur.Ver != baseVer:
		return model.Node{}, false, errs.ErrVersionConflict
	}
	n.Ver = baseVer + 1
	n.UpdatedAt = time.Now()
	f.nodes[n.ID] = n
	return n, !ok, nil
}
func (f *fakeCanvas) UpdatePayload(_ context.Context, boardID, id uuid.UUID, kind model.NodeKind, fn func(model.Payload) (model.Payload, error)) (model.Node, error) {
	n, ok := f.nodes[id]
	if !ok || n.BoardID != boardID {
		return model.Node{}, errs.ErrNotFound
	}
	if n.Kind != kind {
		return model.Node{}, errs.ErrInvalidArgument
	}
	p, err := fn(n.Payload)
	if err != nil {
		return model.Node{}, err
	}
	n.Payload = p
	n.Ver++
	f.nodes[id] = n
	return n, nil
}
func (f *fakeCanvas) DeleteNode(_ context.Context, boardID, id uuid.UUID) ([]model.Edge, error) {
	n, ok := f.nodes[id]
	if !ok || n.BoardID != boardID {
		return nil, errs.ErrNotFound
	}
	delete(f.nodes, id)
	var pruned []model.Edge
	for eid, e := range f.edges {
		if e.Touches(id) {
			pruned = append(pruned, e)
			delete(f.edges, eid)
		}
	}
	return pruned, nil
}
func (f *fakeCanvas) ListEdges(_ context.Context, boardID uuid.UUID) ([]model.Edge, error) {
	out := []model.Edge{}
	for _, e := range f.edges {
		if e.BoardID == boardID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeCanvas) UpsertEdge(_ context.Context, e model.Edge) (model.Edge, bool, error) {
	for _, end := range []uuid.UUID{e.Source, e.Target} {
		if n, ok := f.nodes[end]; !ok || n.BoardID != e.BoardID {
			return model.Edge{}, false, errs.ErrDanglingEdge
		}
	}
	cur, ok := f.edges[e.ID]
	e.Ver = cur.Ver + 1
	f.edges[e.ID] = e
	return e, !ok, nil
}
func (f *fakeCanvas) DeleteEdge(_ context.Context, _, id uuid.UUID) error {
	delete(f.edges, id)
	return nil
}
func (f *fakeCanvas) ListDrawings(_ context.Context, boardID uuid.UUID) ([]model.Drawing, error) {
	out := []model.Drawing{}
	for _, d := range f.drawings {
		if d.BoardID == boardID {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeCanvas) CreateDrawing(_ context.Context, d model.Drawing) (model.Drawing, error) {
	d.CreatedAt = time.Now()
	f.drawings[d.ID] = d
	return d, nil
}
func (f *fakeCanvas) DeleteDrawing(_ context.Context, _, id uuid.UUID) error {
	delete(f.drawings, id)
	return nil
}

type fakeItems struct {
	items map[uuid.UUID]model.ChecklistItem
	err   error
}

var _ repository.ChecklistRepository = (*fakeItems)(nil)

func (f *fakeItems) UpsertItems(_ context.Context, _ uuid.UUID, items []model.ChecklistItem) ([]model.ChecklistItem, []bool, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if f.items == nil {
		f.items = map[uuid.UUID]model.ChecklistItem{}
	}
	created := make([]bool, len(items))
	for i, it := range items {
		_, ok := f.items[it.ID]
		created[i] = !ok
		f.items[it.ID] = it
	}
	return items, created, nil
}
func (f *fakeItems) DeleteItem(_ context.Context, _, id uuid.UUID) error {
	delete(f.items, id)
	return nil
}
func (f *fakeItems) ListItems(_ context.Context, nodeID uuid.UUID) ([]model.ChecklistItem, error) {
	out := []model.ChecklistItem{}
	for _, it := range f.items {
		if it.NodeID == nodeID {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeCollectibles struct {
	catalog []model.Collectible
	owned   []model.Collectible
	xp      int64
}

var _ repository.CollectibleRepository = (*fakeCollectibles)(nil)

func (f *fakeCollectibles) Catalog(context.Context) ([]model.Collectible, error) {
	return f.catalog, nil
}
func (f *fakeCollectibles) Grant(_ context.Context, _ uuid.UUID, c model.Collectible, xp int64) (int64, error) {
	f.owned = append(f.owned, c)
	f.xp += xp
	return f.xp, nil
}
func (f *fakeCollectibles) ListOwned(context.Context, uuid.UUID) ([]model.Collectible, error) {
	return f.owned, nil
}

type fakePub struct {
	mu  sync.Mutex
	got []model.Change
}

var _ realtime.Publisher = (*fakePub)(nil)

func (p *fakePub) Publish(ch model.Change) model.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, ch)
	return ch
}

func (p *fakePub) changes() []model.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Change(nil), p.got...)
}

type fakeAnalyzer struct {
	res  analyze.Result
	err  error
	last analyze.Request
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req analyze.Request) (analyze.Result, error) {
	a.last = req
	return a.res, a.err
}
