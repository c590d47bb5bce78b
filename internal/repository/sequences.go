package repository

import (
	"fmt"
)

// NextSequence 原子地递增并返回 "<name>_<year>" 对应的计数器，第一次调用返回 1。
// 取到的值如果没有被使用就会留下空号，这是允许的。
func (r *Repository) NextSequence(name string, year int) (int64, error) {
	query := `
		INSERT INTO sequences (name, value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET value = sequences.value + 1, updated_at = NOW()
		RETURNING value
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var value int64
	if err := r.dbpool.QueryRowContext(ctx, query, fmt.Sprintf("%s_%d", name, year)).Scan(&value); err != nil {
		return 0, err
	}

	return value, nil
}
