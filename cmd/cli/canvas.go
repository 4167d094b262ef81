package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/outbox"
	"github.com/and161185/brainboard/internal/session"
)

// withSession opens the board, runs fn against its view-models and waits until every
// queued write reached the server. A write the server finally rejected fails the command.
func (a *app) withSession(ctx context.Context, board uuidFlag, fn func(s *session.Session) error) error {
	if err := needIDs([]string{"board"}, &board); err != nil {
		return err
	}
	tf, cc, cli, err := a.authed()
	if err != nil {
		return err
	}
	defer cc.Close()

	var (
		mu       sync.Mutex
		failures []outbox.Failure
	)
	q := outbox.New(outbox.Options{
		Logger: a.log,
		OnFailure: func(f outbox.Failure) {
			mu.Lock()
			failures = append(failures, f)
			mu.Unlock()
		},
	})
	defer q.Close()

	s, err := session.Open(ctx, session.Config{
		BoardID:  board.id,
		UserID:   tf.UserID,
		UserName: tf.Username,
		Backend:  cli,
		Queue:    q,
		Logger:   a.log,
		OnReward: func(c model.Collectible) {
			fmt.Fprintf(a.out, "reward: %s (%s)\n", c.Name, c.Rarity)
		},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(s); err != nil {
		return err
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := q.Flush(fctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failures) > 0 {
		f := failures[0]
		return fmt.Errorf("%s %s: %w", f.Label, f.EntityID, f.Err)
	}
	return nil
}

// buildPayload makes the payload of a new node from the add flags.
func buildPayload(kind, text, link, title, video string) (model.Payload, error) {
	switch model.NodeKind(kind) {
	case model.KindNote:
		return model.NotePayload{HTML: text}, nil
	case model.KindLink:
		return model.LinkPayload{URL: link, Title: title}, nil
	case model.KindImage:
		return model.ImagePayload{URL: link, Caption: title}, nil
	case model.KindVideo:
		return model.VideoPayload{VideoID: video}, nil
	case model.KindChecklist:
		return model.ChecklistPayload{Title: title}, nil
	case model.KindPomodoro:
		return model.PomodoroPayload{State: model.NewFocusState()}, nil
	}
	return nil, fmt.Errorf("unknown node kind %q", kind)
}

func (a *app) cmdNode(ctx context.Context, args []string) error {
	sub, args := subcommand(args)
	fs := newFlags("node " + sub)
	var board, node uuidFlag
	fs.Var(&board, "board", "board id")
	fs.Var(&node, "node", "node id")
	kind := fs.String("kind", "note", "node kind")
	x := fs.Float64("x", 0, "x")
	y := fs.Float64("y", 0, "y")
	w := fs.Float64("w", 0, "width")
	h := fs.Float64("h", 0, "height")
	text := fs.String("text", "", "note html")
	link := fs.String("url", "", "link or image url")
	title := fs.String("title", "", "link title, image caption or checklist title")
	video := fs.String("video", "", "video id")
	color := fs.String("color", "", "node color")
	action := fs.String("action", "summarize", "reorganize or summarize")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if sub == "analyze" {
		if err := needIDs([]string{"board", "node"}, &board, &node); err != nil {
			return err
		}
		_, cc, cli, err := a.authed()
		if err != nil {
			return err
		}
		defer cc.Close()
		n, err := cli.AnalyzeNode(ctx, board.id, node.id, *action)
		if err != nil {
			return err
		}
		a.printJSON(n)
		return nil
	}

	if sub != "add" {
		if err := needIDs([]string{"node"}, &node); err != nil {
			return err
		}
	}
	return a.withSession(ctx, board, func(s *session.Session) error {
		c := s.Canvas()
		switch sub {
		case "add":
			p, err := buildPayload(*kind, *text, *link, *title, *video)
			if err != nil {
				return err
			}
			n, err := c.CreateNode(p, model.Point{X: *x, Y: *y})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n.ID)
			return nil
		case "move":
			if err := c.BeginMove(node.id); err != nil {
				return err
			}
			if err := c.MoveTo(node.id, model.Point{X: *x, Y: *y}); err != nil {
				return err
			}
			return c.EndMove(node.id)
		case "resize":
			if err := c.BeginResize(node.id); err != nil {
				return err
			}
			if err := c.ResizeTo(node.id, *w, *h); err != nil {
				return err
			}
			return c.EndResize(node.id)
		case "color":
			_, err := c.SetColor(node.id, *color)
			return err
		case "edit":
			_, err := c.EditNote(node.id, *text)
			return err
		case "rm":
			return c.DeleteNode(node.id)
		}
		return fmt.Errorf("node: unknown subcommand %q", sub)
	})
}

func (a *app) cmdEdge(ctx context.Context, args []string) error {
	sub, args := subcommand(args)
	fs := newFlags("edge " + sub)
	var board, from, to, edge uuidFlag
	fs.Var(&board, "board", "board id")
	fs.Var(&from, "from", "source node")
	fs.Var(&to, "to", "target node")
	fs.Var(&edge, "edge", "edge id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.withSession(ctx, board, func(s *session.Session) error {
		switch sub {
		case "add":
			if err := needIDs([]string{"from", "to"}, &from, &to); err != nil {
				return err
			}
			e, err := s.Canvas().Connect(from.id, "", to.id, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, e.ID)
			return nil
		case "rm":
			if err := needIDs([]string{"edge"}, &edge); err != nil {
				return err
			}
			return s.Canvas().RemoveEdge(edge.id)
		}
		return fmt.Errorf("edge: unknown subcommand %q", sub)
	})
}

func (a *app) cmdCheck(ctx context.Context, args []string) error {
	sub, args := subcommand(args)
	fs := newFlags("check " + sub)
	var board, node, item uuidFlag
	fs.Var(&board, "board", "board id")
	fs.Var(&node, "node", "checklist node id")
	fs.Var(&item, "item", "item id")
	text := fs.String("text", "", "item text")
	from := fs.Int("from", -1, "position to move from")
	to := fs.Int("to", -1, "position to move to")
	rule := fs.String("rule", string(model.RecurNone), "none, daily, weekly or monthly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needIDs([]string{"node"}, &node); err != nil {
		return err
	}
	return a.withSession(ctx, board, func(s *session.Session) error {
		l, err := s.Checklist(ctx, node.id)
		if err != nil {
			return err
		}
		switch sub {
		case "ls":
			for i, it := range l.Items() {
				mark := " "
				if it.Completed {
					mark = "x"
				}
				fmt.Fprintf(a.out, "%2d [%s] %s  %s\n", i, mark, it.Text, it.ID)
			}
			return nil
		case "add":
			it, err := l.Add(*text)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, it.ID)
			return nil
		case "move":
			if *from < 0 || *to < 0 {
				return errors.New("need -from and -to")
			}
			_, err := l.Reorder(*from, *to)
			return err
		}
		if err := needIDs([]string{"item"}, &item); err != nil {
			return err
		}
		switch sub {
		case "toggle":
			_, err = l.Toggle(item.id)
		case "recur":
			_, err = l.SetRecurrence(item.id, model.Recurrence(strings.ToLower(*rule)), nil)
		case "rm":
			err = l.Remove(item.id)
		default:
			err = fmt.Errorf("check: unknown subcommand %q", sub)
		}
		return err
	})
}

func (a *app) cmdFocus(ctx context.Context, args []string) error {
	sub, args := subcommand(args)
	fs := newFlags("focus " + sub)
	var board, node uuidFlag
	fs.Var(&board, "board", "board id")
	fs.Var(&node, "node", "pomodoro node id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needIDs([]string{"node"}, &node); err != nil {
		return err
	}
	return a.withSession(ctx, board, func(s *session.Session) error {
		m, err := s.Focus(node.id)
		if err != nil {
			return err
		}
		switch sub {
		case "start":
			err = m.Start(ctx)
		case "pause":
			err = m.Pause(ctx)
		case "stop":
			err = m.Stop(ctx)
		case "status":
		case "run":
			go m.Run(ctx, time.Second)
			last := model.FocusStatus("")
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for {
				if st := m.State(); st.Status != last {
					last = st.Status
					fmt.Fprintf(a.out, "%s %s left, %d completed\n", st.Status, m.Remaining().Round(time.Second), st.Stats.Completed)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
				}
			}
		default:
			return fmt.Errorf("focus: unknown subcommand %q", sub)
		}
		if err != nil {
			return err
		}
		st := m.State()
		fmt.Fprintf(a.out, "%s %s left, %d completed, streak %d\n",
			st.Status, m.Remaining().Round(time.Second), st.Stats.Completed, st.Stats.Streak)
		return nil
	})
}

// cmdWatch prints the board feed as JSON lines until interrupted.
func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := newFlags("watch")
	var board, node uuidFlag
	fs.Var(&board, "board", "board id")
	fs.Var(&node, "node", "only rows of this node")
	entities := fs.String("entity", "", "comma separated entity kinds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needIDs([]string{"board"}, &board); err != nil {
		return err
	}
	_, cc, cli, err := a.authed()
	if err != nil {
		return err
	}
	defer cc.Close()

	stream, err := cli.SubscribeFiltered(ctx, board.id, parseEntities(*entities), node.id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	for {
		ch, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := enc.Encode(ch); err != nil {
			return err
		}
	}
}

func parseEntities(s string) []model.EntityKind {
	var out []model.EntityKind
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, model.EntityKind(e))
		}
	}
	return out
}
