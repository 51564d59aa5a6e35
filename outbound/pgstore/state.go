package pgstore

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
)

const getStateSql = `SELECT value FROM app_state WHERE key = $1`

func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.Db.QueryRow(ctx, getStateSql, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return value, nil
}

const setStateSql = `INSERT INTO app_state (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.Db.Exec(ctx, setStateSql, key, value)
	return err
}

const allStateSql = `SELECT key, value FROM app_state`

func (s *Store) AllState(ctx context.Context) (map[string]string, error) {
	rows, err := s.Db.Query(ctx, allStateSql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		state[key] = value
	}

	return state, rows.Err()
}
