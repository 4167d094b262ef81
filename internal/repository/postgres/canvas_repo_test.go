package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

var (
	nodeColNames = []string{"id", "board_id", "owner_id", "kind", "x", "y", "width", "height", "color", "payload", "ver", "updated_at"}
	edgeColNames = []string{"id", "board_id", "source", "source_handle", "target", "target_handle", "ver", "updated_at"}
)

func testNode(t *testing.T) model.Node {
	t.Helper()
	n, err := model.NewNode(uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), model.NotePayload{HTML: "<b>x</b>"}, 10, 20)
	require.NoError(t, err)
	return n
}

func TestCanvasRepo_UpsertNode_Update_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	n := testNode(t)
	raw, err := model.EncodePayload(n.Payload)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM nodes WHERE id=\$1 AND board_id=\$2 FOR UPDATE`).
		WithArgs(n.ID, n.BoardID).
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(3)))
	mock.ExpectQuery(`UPDATE nodes SET kind=\$3`).
		WithArgs(n.ID, n.BoardID, "note", n.X, n.Y, n.Width, n.Height, n.Color, raw, int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id", "updated_at"}).AddRow(n.OwnerID, now))
	mock.ExpectCommit()

	got, created, err := r.UpsertNode(context.Background(), n, 3)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, int64(4), got.Ver)
	require.Equal(t, now, got.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanvasRepo_UpsertNode_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	n := testNode(t)
	raw, err := model.EncodePayload(n.Payload)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM nodes`).
		WithArgs(n.ID, n.BoardID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO nodes`).
		WithArgs(n.ID, n.BoardID, n.OwnerID, "note", n.X, n.Y, n.Width, n.Height, n.Color, raw).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	got, created, err := r.UpsertNode(context.Background(), n, 0)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(1), got.Ver)
}

func TestCanvasRepo_UpsertNode_Conflicts(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	n := testNode(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM nodes`).
		WithArgs(n.ID, n.BoardID).
		WillReturnRows(pgxmock.NewRows([]string{"ver"}).AddRow(int64(5)))
	mock.ExpectRollback()
	_, _, err := r.UpsertNode(context.Background(), n, 4)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT ver FROM nodes`).
		WithArgs(n.ID, n.BoardID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	_, _, err = r.UpsertNode(context.Background(), n, 2)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanvasRepo_ListNodes_DecodesPayload(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	board := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT .* FROM nodes WHERE board_id=\$1`).
		WithArgs(board).
		WillReturnRows(pgxmock.NewRows(nodeColNames).
			AddRow(id, board, uuid.Must(uuid.NewV4()), "checklist", 1.0, 2.0, 300.0, 360.0, "", []byte(`{"title":"trip"}`), int64(2), time.Now()))

	nodes, err := r.ListNodes(context.Background(), board)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, model.ChecklistPayload{Title: "trip"}, nodes[0].Payload)
	require.Equal(t, model.KindChecklist, nodes[0].Kind)
}

func TestCanvasRepo_UpdatePayload_WrongKind(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	board, id := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM nodes WHERE id=\$1 AND board_id=\$2 FOR UPDATE`).
		WithArgs(id, board).
		WillReturnRows(pgxmock.NewRows(nodeColNames).
			AddRow(id, board, uuid.Must(uuid.NewV4()), "note", 0.0, 0.0, 250.0, 200.0, "", []byte(`{"html":""}`), int64(1), time.Now()))
	mock.ExpectRollback()

	_, err := r.UpdatePayload(context.Background(), board, id, model.KindPomodoro, func(p model.Payload) (model.Payload, error) {
		return p, nil
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanvasRepo_DeleteNode_PrunesEdges(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	board, id, other := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	edgeID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM edges WHERE board_id=\$1 AND \(source=\$2 OR target=\$2\)`).
		WithArgs(board, id).
		WillReturnRows(pgxmock.NewRows(edgeColNames).AddRow(edgeID, board, id, "", other, "", int64(1), time.Now()))
	mock.ExpectExec(`DELETE FROM checklist_items WHERE node_id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM nodes WHERE id=\$1 AND board_id=\$2`).
		WithArgs(id, board).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	pruned, err := r.DeleteNode(context.Background(), board, id)
	require.NoError(t, err)
	require.Len(t, pruned, 1)
	require.Equal(t, edgeID, pruned[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanvasRepo_DeleteNode_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	board, id := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM edges`).WithArgs(board, id).WillReturnRows(pgxmock.NewRows(edgeColNames))
	mock.ExpectExec(`DELETE FROM checklist_items`).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM nodes`).WithArgs(id, board).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	_, err := r.DeleteNode(context.Background(), board, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCanvasRepo_UpsertEdge(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	e := model.Edge{ID: uuid.Must(uuid.NewV4()), BoardID: uuid.Must(uuid.NewV4()), Source: uuid.Must(uuid.NewV4()), Target: uuid.Must(uuid.NewV4())}

	mock.ExpectQuery(`SELECT count\(\*\) FROM nodes WHERE board_id=\$1 AND id IN \(\$2, \$3\)`).
		WithArgs(e.BoardID, e.Source, e.Target).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	_, _, err := r.UpsertEdge(context.Background(), e)
	require.ErrorIs(t, err, errs.ErrDanglingEdge)

	mock.ExpectQuery(`SELECT count\(\*\) FROM nodes`).
		WithArgs(e.BoardID, e.Source, e.Target).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`INSERT INTO edges .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(e.ID, e.BoardID, e.Source, "", e.Target, "").
		WillReturnRows(pgxmock.NewRows([]string{"ver", "updated_at", "inserted"}).AddRow(int64(1), time.Now(), true))
	got, created, err := r.UpsertEdge(context.Background(), e)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(1), got.Ver)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanvasRepo_Drawings(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCanvasRepo(db)
	d := model.Drawing{
		ID: uuid.Must(uuid.NewV4()), BoardID: uuid.Must(uuid.NewV4()), OwnerID: uuid.Must(uuid.NewV4()),
		Points: []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, Color: "#000", Width: 2,
	}

	mock.ExpectQuery(`INSERT INTO drawings`).
		WithArgs(d.ID, d.BoardID, d.OwnerID, []byte(`[{"x":1,"y":2},{"x":3,"y":4}]`), "#000", 2.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	got, err := r.CreateDrawing(context.Background(), d)
	require.NoError(t, err)
	require.False(t, got.CreatedAt.IsZero())

	mock.ExpectQuery(`FROM drawings WHERE board_id=\$1`).
		WithArgs(d.BoardID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "board_id", "owner_id", "points", "color", "width", "created_at"}).
			AddRow(d.ID, d.BoardID, d.OwnerID, []byte(`[{"x":1,"y":2}]`), "#000", 2.0, time.Now()))
	list, err := r.ListDrawings(context.Background(), d.BoardID)
	require.NoError(t, err)
	require.Equal(t, []model.Point{{X: 1, Y: 2}}, list[0].Points)

	mock.ExpectExec(`DELETE FROM drawings`).
		WithArgs(d.ID, d.BoardID).
		WillReturnError(errors.New("conn reset"))
	require.Error(t, r.DeleteDrawing(context.Background(), d.BoardID, d.ID))
}
