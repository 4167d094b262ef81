// Package convert maps domain models to BrainBoard wire messages and back.
package convert

import (
	"fmt"

	"github.com/and161185/brainboard/internal/api/boardv1"
	"github.com/and161185/brainboard/internal/model"
)

// --- Node ---

// ToWireNode flattens the payload variant into its JSON encoding.
func ToWireNode(n model.Node) (boardv1.Node, error) {
	raw, err := model.EncodePayload(n.Payload)
	if err != nil {
		return boardv1.Node{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return boardv1.Node{
		ID:        n.ID,
		BoardID:   n.BoardID,
		OwnerID:   n.OwnerID,
		Kind:      string(n.Kind),
		X:         n.X,
		Y:         n.Y,
		Width:     n.Width,
		Height:    n.Height,
		Color:     n.Color,
		Payload:   raw,
		Ver:       n.Ver,
		UpdatedAt: n.UpdatedAt,
	}, nil
}

// FromWireNode restores the payload variant selected by Kind. The result is not validated.
func FromWireNode(in boardv1.Node) (model.Node, error) {
	kind := model.NodeKind(in.Kind)
	p, err := model.DecodePayload(kind, in.Payload)
	if err != nil {
		return model.Node{}, fmt.Errorf("node %s: %w", in.ID, err)
	}
	return model.Node{
		ID:        in.ID,
		BoardID:   in.BoardID,
		OwnerID:   in.OwnerID,
		Kind:      kind,
		X:         in.X,
		Y:         in.Y,
		Width:     in.Width,
		Height:    in.Height,
		Color:     in.Color,
		Payload:   p,
		Ver:       in.Ver,
		UpdatedAt: in.UpdatedAt,
	}, nil
}

func ToWireNodes(ns []model.Node) ([]boardv1.Node, error) {
	out := make([]boardv1.Node, 0, len(ns))
	for _, n := range ns {
		w, err := ToWireNode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func FromWireNodes(in []boardv1.Node) ([]model.Node, error) {
	out := make([]model.Node, 0, len(in))
	for i, w := range in {
		n, err := FromWireNode(w)
		if err != nil {
			return nil, fmt.Errorf("node[%d]: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// --- Invite ---

// ToWireInvite drops the creator, which is not shown to clients.
func ToWireInvite(i model.Invite) boardv1.Invite {
	return boardv1.Invite{
		ID:        i.ID,
		BoardID:   i.BoardID,
		Token:     i.Token,
		Role:      string(i.Role),
		ExpiresAt: i.ExpiresAt,
		CreatedAt: i.CreatedAt,
	}
}

func FromWireInvite(in boardv1.Invite) model.Invite {
	return model.Invite{
		ID:        in.ID,
		BoardID:   in.BoardID,
		Token:     in.Token,
		Role:      model.Role(in.Role),
		ExpiresAt: in.ExpiresAt,
		CreatedAt: in.CreatedAt,
	}
}

func ToWireInvites(is []model.Invite) []boardv1.Invite {
	out := make([]boardv1.Invite, 0, len(is))
	for _, i := range is {
		out = append(out, ToWireInvite(i))
	}
	return out
}

func FromWireInvites(in []boardv1.Invite) []model.Invite {
	out := make([]model.Invite, 0, len(in))
	for _, i := range in {
		out = append(out, FromWireInvite(i))
	}
	return out
}

// --- Snapshot ---

// ToWireSnapshot builds the GetBoard response.
func ToWireSnapshot(s model.BoardSnapshot) (*boardv1.GetBoardResponse, error) {
	nodes, err := ToWireNodes(s.Nodes)
	if err != nil {
		return nil, err
	}
	return &boardv1.GetBoardResponse{
		Board:    s.Board,
		Role:     string(s.Role),
		Nodes:    nodes,
		Edges:    s.Edges,
		Drawings: s.Drawings,
	}, nil
}

// FromWireSnapshot restores a snapshot; nil collections become empty.
func FromWireSnapshot(in *boardv1.GetBoardResponse) (model.BoardSnapshot, error) {
	if in == nil {
		return model.BoardSnapshot{}, fmt.Errorf("nil GetBoardResponse")
	}
	nodes, err := FromWireNodes(in.Nodes)
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	snap := model.BoardSnapshot{
		Board:    in.Board,
		Role:     model.Role(in.Role),
		Nodes:    nodes,
		Edges:    in.Edges,
		Drawings: in.Drawings,
	}
	if snap.Edges == nil {
		snap.Edges = []model.Edge{}
	}
	if snap.Drawings == nil {
		snap.Drawings = []model.Drawing{}
	}
	return snap, nil
}
