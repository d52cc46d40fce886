package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrGroupNotFound    = errors.New("group not found")
	ErrSubgroupNotFound = errors.New("subgroup not found")
	ErrLinkNotFound     = errors.New("link not found")
	ErrCodeExists       = errors.New("short code already exists")
)

// isUniqueViolation проверяет нарушение unique constraint (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
