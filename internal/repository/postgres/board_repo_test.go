package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

func TestBoardRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoardRepo(db)
	b := &model.Board{ID: uuid.Must(uuid.NewV4()), OwnerID: uuid.Must(uuid.NewV4()), Title: "ideas"}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO boards \(id, owner_id, title\)`).
		WithArgs(b.ID, b.OwnerID, b.Title).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec(`INSERT INTO board_members`).
		WithArgs(b.ID, b.OwnerID, "owner").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, r.Create(context.Background(), b))
	require.Equal(t, now, b.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBoardRepo_Role(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoardRepo(db)
	board, user := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT role FROM board_members WHERE board_id=\$1 AND user_id=\$2`).
		WithArgs(board, user).
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("editor"))
	role, err := r.Role(context.Background(), board, user)
	require.NoError(t, err)
	require.Equal(t, model.RoleEditor, role)

	mock.ExpectQuery(`SELECT role FROM board_members`).
		WithArgs(board, user).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Role(context.Background(), board, user)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestBoardRepo_AddMemberKeepsHigherRole(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoardRepo(db)
	m := model.Member{BoardID: uuid.Must(uuid.NewV4()), UserID: uuid.Must(uuid.NewV4()), Role: model.RoleViewer}

	mock.ExpectQuery(`INSERT INTO board_members .* ON CONFLICT \(board_id, user_id\) DO UPDATE`).
		WithArgs(m.BoardID, m.UserID, "viewer").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("editor"))
	role, err := r.AddMember(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, model.RoleEditor, role)
}

func TestBoardRepo_Invites(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBoardRepo(db)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	inv := &model.Invite{
		ID:        uuid.Must(uuid.NewV4()),
		BoardID:   uuid.Must(uuid.NewV4()),
		Token:     "tok",
		Role:      model.RoleViewer,
		ExpiresAt: &exp,
		CreatedBy: uuid.Must(uuid.NewV4()),
	}
	cols := []string{"id", "board_id", "token", "role", "expires_at", "created_by", "created_at"}

	mock.ExpectQuery(`INSERT INTO board_invites`).
		WithArgs(inv.ID, inv.BoardID, inv.Token, "viewer", inv.ExpiresAt, inv.CreatedBy).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	require.NoError(t, r.CreateInvite(ctx, inv))

	mock.ExpectQuery(`FROM board_invites WHERE token=\$1`).
		WithArgs("tok").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(inv.ID, inv.BoardID, "tok", "viewer", inv.ExpiresAt, inv.CreatedBy, time.Now()))
	got, err := r.GetInviteByToken(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, model.RoleViewer, got.Role)
	require.Equal(t, exp, *got.ExpiresAt)

	mock.ExpectQuery(`FROM board_invites WHERE token=\$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetInviteByToken(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM board_invites WHERE id=\$1`).
		WithArgs(inv.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.NoError(t, r.DeleteInvite(ctx, inv.ID))
	require.NoError(t, mock.ExpectationsWereMet())
}
