package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/jackc/pgx/v5"
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetLink(ctx context.Context, id string) (*models.Link, error)
	GetResolveTargetByShortCode(ctx context.Context, code string) (*models.ResolveTarget, error)
	Update(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, id string) error
	IncrementClicks(ctx context.Context, linkID string) error
	ListShortCodesByGroup(ctx context.Context, groupID string) ([]string, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (id, subgroup_id, label, target_url, short_code, clicks, created_at, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		link.ID,
		link.SubgroupID,
		link.Label,
		link.TargetURL,
		link.ShortCode,
		link.CreatedAt,
		link.ExpiresAt,
		link.CreatedBy,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetLink(ctx context.Context, id string) (*models.Link, error) {
	query := `
		SELECT id, subgroup_id, label, target_url, short_code, clicks, created_at, expires_at, created_by
		FROM links
		WHERE id = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&link.ID,
		&link.SubgroupID,
		&link.Label,
		&link.TargetURL,
		&link.ShortCode,
		&link.Clicks,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.CreatedBy,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// GetResolveTargetByShortCode один join'овый запрос Link → Subgroup → Group:
// конвейеру редиректа нужен ровно этот срез, без полного дерева.
// Ворота публикации и истечения здесь НЕ применяются — резолверу важно
// различать "не найдено" и "найдено, но закрыто".
func (r *linkRepository) GetResolveTargetByShortCode(ctx context.Context, code string) (*models.ResolveTarget, error) {
	query := `
		SELECT l.id, l.short_code, l.target_url, g.id, g.status, l.expires_at
		FROM links l
		JOIN subgroups s ON l.subgroup_id = s.id
		JOIN groups g ON s.group_id = g.id
		WHERE l.short_code = $1
	`

	target := &models.ResolveTarget{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&target.LinkID,
		&target.ShortCode,
		&target.TargetURL,
		&target.GroupID,
		&target.GroupStatus,
		&target.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to resolve short code: %w", err)
	}

	return target, nil
}

func (r *linkRepository) Update(ctx context.Context, link *models.Link) error {
	query := `
		UPDATE links SET label = $2, target_url = $3, expires_at = $4 WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, link.ID, link.Label, link.TargetURL, link.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// ListShortCodesByGroup возвращает короткие коды всех ссылок группы
// (нужно для сброса кэша при смене статуса публикации)
func (r *linkRepository) ListShortCodesByGroup(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT l.short_code
		FROM links l
		JOIN subgroups s ON l.subgroup_id = s.id
		WHERE s.group_id = $1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group short codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan short code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating short codes: %w", err)
	}

	return codes, nil
}

// IncrementClicks атомарный инкремент счётчика одним UPDATE.
// Никакого read-modify-write: параллельные редиректы одной ссылки
// не теряют кликов.
func (r *linkRepository) IncrementClicks(ctx context.Context, linkID string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = $1`, linkID)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}
