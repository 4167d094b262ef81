// Package checklist is the view-model of a checklist node's items: local-first edits,
// drag reordering with dense sort orders and realtime reconciliation scoped to the node.
package checklist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/merge"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/outbox"
)

// Backend persists checklist items.
type Backend interface {
	UpsertItems(ctx context.Context, boardID, nodeID uuid.UUID, items []model.ChecklistItem) ([]model.ChecklistItem, error)
	DeleteItem(ctx context.Context, boardID, nodeID, id uuid.UUID) error
}

// Enqueuer accepts mutations for ordered delivery.
type Enqueuer interface {
	Enqueue(m outbox.Mutation) (uint64, error)
}

// Move removes the item at from and inserts it at to, then renumbers SortOrder 0..n-1.
// The input slice is not modified.
func Move(items []model.ChecklistItem, from, to int) ([]model.ChecklistItem, error) {
	n := len(items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, fmt.Errorf("%w: move %d -> %d in %d items", errs.ErrInvalidArgument, from, to, n)
	}
	out := make([]model.ChecklistItem, 0, n)
	moved := items[from]
	for i, it := range items {
		if i != from {
			out = append(out, it)
		}
	}
	out = append(out[:to], append([]model.ChecklistItem{moved}, out[to:]...)...)
	Resequence(out)
	return out, nil
}

// Resequence assigns dense zero-based sort orders in slice order.
func Resequence(items []model.ChecklistItem) {
	for i := range items {
		items[i].SortOrder = i
	}
}

func bySortOrder(a, b model.ChecklistItem) int { return cmp.Compare(a.SortOrder, b.SortOrder) }

// List holds the items of one checklist node.
type List struct {
	boardID uuid.UUID
	nodeID  uuid.UUID
	backend Backend
	queue   Enqueuer
	log     *zap.Logger
	now     func() time.Time

	items *merge.Collection[model.ChecklistItem]

	mu        sync.Mutex
	confirmed map[uuid.UUID]model.ChecklistItem
}

// NewList creates an empty list for nodeID. now may be nil.
func NewList(boardID, nodeID uuid.UUID, backend Backend, queue Enqueuer, log *zap.Logger, now func() time.Time) *List {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &List{
		boardID:   boardID,
		nodeID:    nodeID,
		backend:   backend,
		queue:     queue,
		log:       log,
		now:       now,
		items:     merge.New(merge.WithOrder(bySortOrder)),
		confirmed: make(map[uuid.UUID]model.ChecklistItem),
	}
}

// NodeID returns the owning checklist node.
func (l *List) NodeID() uuid.UUID { return l.nodeID }

// Load replaces the items with a fetched list.
func (l *List) Load(items []model.ChecklistItem) {
	l.items.Load(items)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed = make(map[uuid.UUID]model.ChecklistItem, len(items))
	for _, it := range items {
		l.confirmed[it.ID] = it
	}
}

// Items returns the items ordered by SortOrder.
func (l *List) Items() []model.ChecklistItem { return l.items.Items() }

// Add appends an item at the end of the list.
func (l *List) Add(text string) (model.ChecklistItem, error) {
	if strings.TrimSpace(text) == "" {
		return model.ChecklistItem{}, fmt.Errorf("%w: item text is empty", errs.ErrInvalidArgument)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.ChecklistItem{}, err
	}
	it := model.ChecklistItem{
		ID:         id,
		NodeID:     l.nodeID,
		Text:       text,
		SortOrder:  l.items.Len(),
		Recurrence: model.RecurNone,
		UpdatedAt:  l.now(),
	}
	l.items.Put(it)
	return it, l.sync("check.add")
}

// Edit changes the text of an item.
func (l *List) Edit(id uuid.UUID, text string) (model.ChecklistItem, error) {
	return l.update(id, "check.edit", func(it *model.ChecklistItem) { it.Text = text })
}

// Toggle flips completion and stamps the completion time.
func (l *List) Toggle(id uuid.UUID) (model.ChecklistItem, error) {
	now := l.now()
	return l.update(id, "check.toggle", func(it *model.ChecklistItem) { it.SetCompleted(!it.Completed, now) })
}

// SetRecurrence changes the reset rule; days only apply to weekly recurrence.
func (l *List) SetRecurrence(id uuid.UUID, r model.Recurrence, days []time.Weekday) (model.ChecklistItem, error) {
	return l.update(id, "check.recur", func(it *model.ChecklistItem) {
		it.Recurrence = r
		it.ResetDays = append([]time.Weekday(nil), days...)
	})
}

// Reorder moves an item and persists the renumbered list as one batch.
func (l *List) Reorder(from, to int) ([]model.ChecklistItem, error) {
	var (
		moved []model.ChecklistItem
		err   error
	)
	l.items.Replace(func(items []model.ChecklistItem) []model.ChecklistItem {
		moved, err = Move(items, from, to)
		if err != nil {
			return items
		}
		return moved
	})
	if err != nil {
		return nil, err
	}
	return moved, l.sync("check.reorder")
}

// Remove deletes an item and closes the gap in sort orders.
func (l *List) Remove(id uuid.UUID) error {
	if _, ok := l.items.Get(id); !ok {
		return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	l.items.Replace(func(items []model.ChecklistItem) []model.ChecklistItem {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		Resequence(out)
		return out
	})
	return l.sync("check.delete")
}

// ApplyChange reconciles a checklist item change. Changes of other nodes are ignored.
func (l *List) ApplyChange(ch model.Change) (merge.Outcome, error) {
	if ch.Entity != model.EntityChecklistItem {
		return merge.Ignored, fmt.Errorf("checklist: unexpected entity %q", ch.Entity)
	}
	if ch.NodeID != uuid.Nil && ch.NodeID != l.nodeID {
		return merge.Ignored, nil
	}
	ev, err := merge.Decode[model.ChecklistItem](ch)
	if err != nil {
		return merge.Ignored, err
	}
	if ev.Type != merge.Delete && ev.Record.NodeID != l.nodeID {
		return merge.Ignored, nil
	}
	l.mu.Lock()
	if ev.Type == merge.Delete {
		delete(l.confirmed, ev.ID)
	} else {
		l.confirmed[ev.ID] = ev.Record
	}
	l.mu.Unlock()
	return l.items.Apply(ev), nil
}

func (l *List) update(id uuid.UUID, label string, fn func(it *model.ChecklistItem)) (model.ChecklistItem, error) {
	it, ok := l.items.Get(id)
	if !ok {
		return model.ChecklistItem{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	fn(&it)
	if err := it.Validate(); err != nil {
		return model.ChecklistItem{}, err
	}
	it.UpdatedAt = l.now()
	l.items.Put(it)
	return it, l.sync(label)
}

// sync queues a reconciliation of the whole list under the node id. When it runs, every
// earlier mutation of the node has settled, so the difference between the local and the
// confirmed items is exactly what is still unsaved, including writes of failed predecessors.
func (l *List) sync(label string) error {
	_, err := l.queue.Enqueue(outbox.Mutation{
		EntityID: l.nodeID,
		Label:    label,
		Apply:    l.push,
		Revert:   l.reset,
	})
	return err
}

func (l *List) push(ctx context.Context) error {
	local := l.items.Items()
	present := make(map[uuid.UUID]struct{}, len(local))
	var batch []model.ChecklistItem

	l.mu.Lock()
	for _, it := range local {
		present[it.ID] = struct{}{}
		if c, ok := l.confirmed[it.ID]; !ok || !sameContent(c, it) {
			batch = append(batch, it)
		}
	}
	var gone []uuid.UUID
	for id := range l.confirmed {
		if _, ok := present[id]; !ok {
			gone = append(gone, id)
		}
	}
	l.mu.Unlock()

	for _, id := range gone {
		err := l.backend.DeleteItem(ctx, l.boardID, l.nodeID, id)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		l.mu.Lock()
		delete(l.confirmed, id)
		l.mu.Unlock()
	}
	if len(batch) == 0 {
		return nil
	}
	saved, err := l.backend.UpsertItems(ctx, l.boardID, l.nodeID, batch)
	if err != nil {
		return err
	}
	l.mu.Lock()
	for _, it := range saved {
		l.confirmed[it.ID] = it
	}
	l.mu.Unlock()
	return nil
}

// reset drops every unsaved local change of the list.
func (l *List) reset() {
	l.mu.Lock()
	items := make([]model.ChecklistItem, 0, len(l.confirmed))
	for _, it := range l.confirmed {
		items = append(items, it)
	}
	l.mu.Unlock()
	l.items.Load(items)
	l.log.Info("checklist: reverted to confirmed state", zap.Stringer("node", l.nodeID), zap.Int("items", len(items)))
}

// sameContent compares the fields a client edits.
func sameContent(a, b model.ChecklistItem) bool {
	return a.NodeID == b.NodeID &&
		a.Text == b.Text &&
		a.Completed == b.Completed &&
		a.SortOrder == b.SortOrder &&
		a.Recurrence == b.Recurrence &&
		slices.Equal(a.ResetDays, b.ResetDays) &&
		timeEqual(a.CompletedAt, b.CompletedAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
