package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/brainboard/internal/model"
)

// CollectibleRepo implements CollectibleRepository using PostgreSQL.
type CollectibleRepo struct{ db *DB }

// NewCollectibleRepo constructs a collectible repository.
func NewCollectibleRepo(db *DB) *CollectibleRepo { return &CollectibleRepo{db: db} }

// Catalog returns every collectible that can be rolled.
func (r *CollectibleRepo) Catalog(ctx context.Context) ([]model.Collectible, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, name, rarity, weight FROM collectibles ORDER BY weight DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Collectible{}
	for rows.Next() {
		var c model.Collectible
		if err := rows.Scan(&c.ID, &c.Name, &c.Rarity, &c.Weight); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Grant stores an owned collectible with its genome and credits xp.
func (r *CollectibleRepo) Grant(ctx context.Context, userID uuid.UUID, c model.Collectible, xp int64) (int64, error) {
	const own = `INSERT INTO user_collectibles (user_id, collectible_id, genome, acquired_at) VALUES ($1,$2,$3,$4)`
	const credit = `
INSERT INTO user_profiles (user_id, xp) VALUES ($1,$2)
ON CONFLICT (user_id) DO UPDATE SET xp = user_profiles.xp + EXCLUDED.xp
RETURNING xp`

	genome, err := json.Marshal(c.Genome)
	if err != nil {
		return 0, err
	}
	var total int64
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, own, userID, c.ID, genome, c.AcquiredAt); err != nil {
			return err
		}
		return tx.QueryRow(ctx, credit, userID, xp).Scan(&total)
	})
	return total, err
}

// ListOwned returns a user's collectibles in acquisition order.
func (r *CollectibleRepo) ListOwned(ctx context.Context, userID uuid.UUID) ([]model.Collectible, error) {
	const q = `
SELECT c.id, c.name, c.rarity, c.weight, uc.genome, uc.acquired_at
FROM user_collectibles uc JOIN collectibles c ON c.id = uc.collectible_id
WHERE uc.user_id=$1
ORDER BY uc.acquired_at`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Collectible{}
	for rows.Next() {
		var (
			c   model.Collectible
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Rarity, &c.Weight, &raw, &c.AcquiredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c.Genome); err != nil {
			return nil, fmt.Errorf("collectible %s genome: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
