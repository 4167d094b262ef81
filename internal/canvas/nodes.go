package canvas

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

// editPayload runs fn on the payload of node id when it is of type P.
func editPayload[P model.Payload](c *Controller, id uuid.UUID, label string, fn func(p *P) error) (model.Node, error) {
	return c.UpdateNode(id, label, func(n *model.Node) error {
		p, ok := n.Payload.(P)
		if !ok {
			return fmt.Errorf("%w: node %s is %s", errs.ErrInvalidArgument, id, n.Kind)
		}
		if err := fn(&p); err != nil {
			return err
		}
		n.Payload = p
		return nil
	})
}

// EditNote replaces the rich text of a note.
func (c *Controller) EditNote(id uuid.UUID, html string) (model.Node, error) {
	return editPayload(c, id, "note.edit", func(p *model.NotePayload) error {
		p.HTML = html
		return nil
	})
}

// SetImage points an image node at a new object.
func (c *Controller) SetImage(id uuid.UUID, url, caption string) (model.Node, error) {
	return editPayload(c, id, "image.edit", func(p *model.ImagePayload) error {
		p.URL, p.Caption = url, caption
		return nil
	})
}

// SetLink updates a link node.
func (c *Controller) SetLink(id uuid.UUID, url, title string) (model.Node, error) {
	return editPayload(c, id, "link.edit", func(p *model.LinkPayload) error {
		p.URL, p.Title = strings.TrimSpace(url), title
		return nil
	})
}

// RenameChecklist sets a checklist title.
func (c *Controller) RenameChecklist(id uuid.UUID, title string) (model.Node, error) {
	return editPayload(c, id, "checklist.rename", func(p *model.ChecklistPayload) error {
		p.Title = title
		return nil
	})
}

// SetVideoPosition records the playback position of a video node.
func (c *Controller) SetVideoPosition(id uuid.UUID, sec float64) (model.Node, error) {
	return editPayload(c, id, "video.seek", func(p *model.VideoPayload) error {
		p.PositionSec = sec
		return nil
	})
}

// SetFocusState stores a focus widget state in its pomodoro node.
func (c *Controller) SetFocusState(id uuid.UUID, st model.FocusState) (model.Node, error) {
	return editPayload(c, id, "focus.save", func(p *model.PomodoroPayload) error {
		p.State = st
		return nil
	})
}

// SetColor changes the style color of any node.
func (c *Controller) SetColor(id uuid.UUID, color string) (model.Node, error) {
	return c.UpdateNode(id, "node.color", func(n *model.Node) error {
		n.Color = color
		return nil
	})
}
