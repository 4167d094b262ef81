package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
)

// newFlags builds a subcommand flag set that reports errors instead of exiting.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// uuidFlag is a flag.Value holding a uuid.
type uuidFlag struct{ id uuid.UUID }

func (f *uuidFlag) String() string { return f.id.String() }
func (f *uuidFlag) Set(s string) error {
	id, err := uuid.FromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("bad id %q", s)
	}
	f.id = id
	return nil
}

// needIDs reports the first unset id flag by name.
func needIDs(names []string, ids ...*uuidFlag) error {
	for i, f := range ids {
		if f.id == uuid.Nil {
			return fmt.Errorf("need -%s", names[i])
		}
	}
	return nil
}

func parseRole(s string) (model.Role, error) {
	r := model.Role(strings.ToLower(strings.TrimSpace(s)))
	if r != model.RoleEditor && r != model.RoleViewer {
		return "", fmt.Errorf("role must be editor or viewer, got %q", s)
	}
	return r, nil
}

// subcommand splits "create -title x" into "create" and its flags.
func subcommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	return args[0], args[1:]
}

// ---- accounts ----

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := newFlags("register")
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *u == "" || *p == "" {
		return errors.New("need -u and -p")
	}
	cc, cli, err := a.connect("")
	if err != nil {
		return err
	}
	defer cc.Close()
	id, err := cli.Register(ctx, *u, *p)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, id)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := newFlags("login")
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *u == "" || *p == "" {
		return errors.New("need -u and -p")
	}
	cc, cli, err := a.connect("")
	if err != nil {
		return err
	}
	defer cc.Close()
	sess, err := cli.Login(ctx, *u, *p)
	if err != nil {
		return err
	}
	if err := saveToken(tokenFile{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		UserID:      sess.UserID,
		Username:    sess.Username,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

// ---- boards ----

func (a *app) cmdBoard(ctx context.Context, args []string) error {
	sub, args := subcommand(args)
	_, cc, cli, err := a.authed()
	if err != nil {
		return err
	}
	defer cc.Close()

	switch sub {
	case "create":
		fs := newFlags("board create")
		title := fs.String("title", "", "board title")
		if err := fs.Parse(args); err != nil {
			return err
		}
		b, err := cli.CreateBoard(ctx, *title)
		if err != nil {
			return err
		}
		a.printJSON(b)
	case "ls":
		boards, err := cli.ListBoards(ctx)
		if err != nil {
			return err
		}
		for _, b := range boards {
			fmt.Fprintf(a.out, "%s  %s  %s\n", b.ID, b.CreatedAt.Local().Format(time.DateTime), b.Title)
		}
	case "show":
		fs := newFlags("board show")
		var board uuidFlag
		fs.Var(&board, "board", "board id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := needIDs([]string{"board"}, &board); err != nil {
			return err
		}
		snap, err := cli.GetBoard(ctx, board.id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s (%s) role=%s\n", snap.Board.Title, snap.Board.ID, snap.Role)
		for _, n := range snap.Nodes {
			fmt.Fprintf(a.out, "node %s %-9s at (%.0f,%.0f) %.0fx%.0f v%d\n", n.ID, n.Kind, n.X, n.Y, n.Width, n.Height, n.Ver)
		}
		for _, e := range snap.Edges {
			fmt.Fprintf(a.out, "edge %s %s -> %s\n", e.ID, e.Source, e.Target)
		}
		fmt.Fprintf(a.out, "%d drawings\n", len(snap.Drawings))
	default:
		return fmt.Errorf("board: unknown subcommand %q", sub)
	}
	return nil
}

func (a *app) cmdInvite(ctx context.Context, args []string) error {
	sub, args := subcommand(args)
	fs := newFlags("invite " + sub)
	var board, id uuidFlag
	fs.Var(&board, "board", "board id")
	fs.Var(&id, "id", "invite id")
	role := fs.String("role", "viewer", "editor or viewer")
	ttl := fs.Duration("ttl", 0, "expiry; 0 never expires")
	token := fs.String("token", "", "invite token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, cc, cli, err := a.authed()
	if err != nil {
		return err
	}
	defer cc.Close()

	switch sub {
	case "create":
		if err := needIDs([]string{"board"}, &board); err != nil {
			return err
		}
		r, err := parseRole(*role)
		if err != nil {
			return err
		}
		inv, err := cli.CreateInvite(ctx, board.id, r, *ttl)
		if err != nil {
			return err
		}
		a.printJSON(inv)
	case "ls", "list":
		if err := needIDs([]string{"board"}, &board); err != nil {
			return err
		}
		invs, err := cli.ListInvites(ctx, board.id)
		if err != nil {
			return err
		}
		a.printJSON(invs)
	case "revoke":
		if err := needIDs([]string{"id"}, &id); err != nil {
			return err
		}
		return cli.RevokeInvite(ctx, id.id)
	case "accept":
		if *token == "" {
			return errors.New("need -token")
		}
		boardID, r, err := cli.AcceptInvite(ctx, *token)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "joined %s as %s\n", boardID, r)
	default:
		return fmt.Errorf("invite: unknown subcommand %q", sub)
	}
	return nil
}

func (a *app) cmdRewards(ctx context.Context) error {
	_, cc, cli, err := a.authed()
	if err != nil {
		return err
	}
	defer cc.Close()
	cs, err := cli.ListCollectibles(ctx)
	if err != nil {
		return err
	}
	for _, c := range cs {
		fmt.Fprintf(a.out, "%-10s %-24s %s %d petals\n", c.Rarity, c.Name, c.Genome.Color, c.Genome.PetalCount)
	}
	return nil
}
