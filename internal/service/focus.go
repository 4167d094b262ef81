package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
	"github.com/and161185/brainboard/internal/repository"
)

// Genome bounds of rolled plants.
const (
	MinPetals = 3
	MaxPetals = 12
	MinStem   = 20
	MaxStem   = 120
)

var (
	genomeColors = []string{"#f06292", "#ba68c8", "#7986cb", "#4fc3f7", "#4db6ac", "#aed581", "#ffd54f", "#ff8a65"}
	petalShapes  = []string{"round", "pointed", "heart", "spiky"}
	leafTypes    = []string{"simple", "lobed", "needle", "fern"}
)

// xpFor is the experience credited for a collectible of the given rarity.
func xpFor(rarity string) int64 {
	switch rarity {
	case "uncommon":
		return 20
	case "rare":
		return 40
	case "epic":
		return 80
	case "legendary":
		return 160
	default:
		return 10
	}
}

// FocusService persists focus widget state and runs reward rolls.
type FocusService interface {
	// SaveState writes the widget state into a pomodoro node.
	SaveState(ctx context.Context, userID, boardID, nodeID uuid.UUID, st model.FocusState) (model.Node, error)
	// RollReward grants a random collectible and returns it with the user's new XP total.
	RollReward(ctx context.Context, userID uuid.UUID) (model.Collectible, int64, error)
	ListCollectibles(ctx context.Context, userID uuid.UUID) ([]model.Collectible, error)
}

type FocusServiceImpl struct {
	canvas       repository.CanvasRepository
	collectibles repository.CollectibleRepository
	access       Access
	pub          realtime.Publisher
	log          *zap.Logger
	intn         func(n int) int
	now          func() time.Time
}

// NewFocusService constructs FocusService.
func NewFocusService(canvas repository.CanvasRepository, collectibles repository.CollectibleRepository, boards repository.BoardRepository, pub realtime.Publisher, log *zap.Logger) *FocusServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &FocusServiceImpl{
		canvas:       canvas,
		collectibles: collectibles,
		access:       NewAccess(boards),
		pub:          pub,
		log:          log,
		intn:         rand.Intn,
		now:          time.Now,
	}
}

func (s *FocusServiceImpl) SaveState(ctx context.Context, userID, boardID, nodeID uuid.UUID, st model.FocusState) (model.Node, error) {
	if nodeID == uuid.Nil {
		return model.Node{}, fmt.Errorf("%w: empty node id", errs.ErrInvalidArgument)
	}
	if err := st.Validate(); err != nil {
		return model.Node{}, err
	}
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleEditor); err != nil {
		return model.Node{}, err
	}
	stored, err := s.canvas.UpdatePayload(ctx, boardID, nodeID, model.KindPomodoro, func(model.Payload) (model.Payload, error) {
		return model.PomodoroPayload{State: st}, nil
	})
	if err != nil {
		return model.Node{}, err
	}
	publish(s.pub, s.log, boardID, uuid.Nil, model.EntityNode, model.EventUpdate, stored, nil)
	return stored, nil
}

func (s *FocusServiceImpl) RollReward(ctx context.Context, userID uuid.UUID) (model.Collectible, int64, error) {
	if userID == uuid.Nil {
		return model.Collectible{}, 0, fmt.Errorf("%w: empty user id", errs.ErrInvalidArgument)
	}
	catalog, err := s.collectibles.Catalog(ctx)
	if err != nil {
		return model.Collectible{}, 0, fmt.Errorf("catalog: %w", err)
	}
	c, err := s.pick(catalog)
	if err != nil {
		return model.Collectible{}, 0, err
	}
	c.Genome = s.genome()
	c.AcquiredAt = s.now().UTC()

	total, err := s.collectibles.Grant(ctx, userID, c, xpFor(c.Rarity))
	if err != nil {
		return model.Collectible{}, 0, fmt.Errorf("grant: %w", err)
	}
	s.log.Info("reward rolled",
		zap.Stringer("user", userID),
		zap.String("rarity", c.Rarity),
		zap.Int64("xp", total),
	)
	return c, total, nil
}

func (s *FocusServiceImpl) ListCollectibles(ctx context.Context, userID uuid.UUID) ([]model.Collectible, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrInvalidArgument)
	}
	return s.collectibles.ListOwned(ctx, userID)
}

// pick draws one entry with probability proportional to its weight.
func (s *FocusServiceImpl) pick(catalog []model.Collectible) (model.Collectible, error) {
	total := 0
	for _, c := range catalog {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total == 0 {
		return model.Collectible{}, errors.New("reward catalog is empty")
	}
	r := s.intn(total)
	for _, c := range catalog {
		if c.Weight <= 0 {
			continue
		}
		if r < c.Weight {
			return c, nil
		}
		r -= c.Weight
	}
	return catalog[len(catalog)-1], nil
}

func (s *FocusServiceImpl) genome() model.Genome {
	return model.Genome{
		Color:      genomeColors[s.intn(len(genomeColors))],
		PetalCount: MinPetals + s.intn(MaxPetals-MinPetals+1),
		PetalShape: petalShapes[s.intn(len(petalShapes))],
		StemHeight: MinStem + s.intn(MaxStem-MinStem+1),
		LeafType:   leafTypes[s.intn(len(leafTypes))],
	}
}
