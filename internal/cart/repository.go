package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// SnapshotRepository stores cart snapshots in the cart_snapshots table.
// item_count and last_activity are denormalized from the JSON state so the
// sweeper can query idle carts.
type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Load(ctx context.Context, profileID string) (*domain.CartState, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT state
		FROM cart_snapshots
		WHERE profile_id = $1
	`, profileID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return decodeState(data)
}

func (r *SnapshotRepository) Save(ctx context.Context, profileID string, state domain.CartState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (profile_id, state, item_count, last_activity, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (profile_id) DO UPDATE
		SET state = EXCLUDED.state,
			item_count = EXCLUDED.item_count,
			last_activity = EXCLUDED.last_activity,
			updated_at = NOW()
	`, profileID, string(data), len(state.Items), state.LastActivity)
	return err
}

// ListAbandoned returns non-empty carts idle since before cutoff that have not
// been reminded about since their last activity.
func (r *SnapshotRepository) ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]AbandonedCart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT profile_id, state
		FROM cart_snapshots
		WHERE item_count > 0
			AND last_activity < $1
			AND (reminded_at IS NULL OR reminded_at < last_activity)
		ORDER BY last_activity
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var carts []AbandonedCart
	for rows.Next() {
		var profileID string
		var data []byte
		if err := rows.Scan(&profileID, &data); err != nil {
			return nil, err
		}
		state, err := decodeState(data)
		if err != nil {
			return nil, err
		}
		carts = append(carts, AbandonedCart{ProfileID: profileID, State: *state})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return carts, nil
}

// MarkReminded records a reminder unless the cart saw activity after lastActivity.
func (r *SnapshotRepository) MarkReminded(ctx context.Context, profileID string, lastActivity time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cart_snapshots SET reminded_at = NOW()
		WHERE profile_id = $1 AND last_activity <= $2
	`, profileID, lastActivity)
	return err
}
