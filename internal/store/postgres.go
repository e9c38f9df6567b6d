package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"boardsync/api/internal/board"
	"boardsync/api/internal/rbac"
)

// PostgresStore is the persistence adapter behind the sync engine: board
// documents as JSONB plus the accounts_boards membership table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetBoardDocument(ctx context.Context, boardID string) ([]board.Node, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM boards WHERE id=$1`, boardID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", boardID, err)
	}

	var nodes []board.Node
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return nil, fmt.Errorf("decode board %s: %w", boardID, err)
		}
	}
	return nodes, nil
}

func (s *PostgresStore) SaveBoardDocument(ctx context.Context, boardID string, nodes []board.Node) error {
	if nodes == nil {
		nodes = []board.Node{}
	}
	raw, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode board %s: %w", boardID, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE boards SET document=$2, updated_at=NOW() WHERE id=$1`, boardID, raw); err != nil {
		return fmt.Errorf("save board %s: %w", boardID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateBoardName(ctx context.Context, boardID, name string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE boards SET name=$2 WHERE id=$1`, boardID, name); err != nil {
		return fmt.Errorf("rename board %s: %w", boardID, err)
	}
	return nil
}

func (s *PostgresStore) GetMembership(ctx context.Context, boardID, userID string) (*Membership, error) {
	var membership Membership
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT visible, role FROM accounts_boards
		WHERE board_id=$1 AND account_id=$2
	`, boardID, userID).Scan(&membership.Visible, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load membership %s/%s: %w", boardID, userID, err)
	}
	membership.Role = string(rbac.Normalize(role))
	return &membership, nil
}

func (s *PostgresStore) ListAdmins(ctx context.Context, boardID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id FROM accounts_boards
		WHERE board_id=$1 AND role='admin'
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list admins %s: %w", boardID, err)
	}
	defer rows.Close()

	var admins []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, id)
	}
	return admins, rows.Err()
}

// RecordJoin inserts the membership row on first join; later joins are
// no-ops so visibility and role survive reconnects.
func (s *PostgresStore) RecordJoin(ctx context.Context, userID, boardID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts_boards (board_id, account_id, role, visible)
		VALUES ($1, $2, 'member', FALSE)
		ON CONFLICT (board_id, account_id) DO NOTHING
	`, boardID, userID)
	if err != nil {
		return fmt.Errorf("record join %s/%s: %w", boardID, userID, err)
	}
	return nil
}

func (s *PostgresStore) SetVisibility(ctx context.Context, boardID, userID string, visible bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts_boards SET visible=$3
		WHERE board_id=$1 AND account_id=$2
	`, boardID, userID, visible)
	if err != nil {
		return fmt.Errorf("set visibility %s/%s: %w", boardID, userID, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
