package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/jackc/pgx/v5"
)

type GroupRepository interface {
	CreateGroupWithSubgroups(ctx context.Context, group *models.Group, subgroups []*models.Subgroup) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroupsWithTree(ctx context.Context) ([]*models.Group, error)
	RenameGroup(ctx context.Context, id, name string) error
	SetGroupStatus(ctx context.Context, id string, status models.GroupStatus, publishedAt *time.Time) error
	DeleteGroupCascade(ctx context.Context, id string) ([]string, error)
	CreateSubgroup(ctx context.Context, subgroup *models.Subgroup) error
	GetSubgroup(ctx context.Context, id string) (*models.Subgroup, error)
	RenameSubgroup(ctx context.Context, id, name string) error
	DeleteSubgroupCascade(ctx context.Context, id string) ([]string, error)
}

type groupRepository struct {
	db *PostgresDB
}

func NewGroupRepository(db *PostgresDB) GroupRepository {
	return &groupRepository{db: db}
}

// CreateGroupWithSubgroups вставляет группу и её дефолтные подгруппы одной
// транзакцией: либо всё дерево целиком, либо ничего
func (r *groupRepository) CreateGroupWithSubgroups(ctx context.Context, group *models.Group, subgroups []*models.Subgroup) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO groups (id, name, status, created_at, published_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, group.ID, group.Name, group.Status, group.CreatedAt, group.PublishedAt, group.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	for _, sg := range subgroups {
		_, err = tx.Exec(ctx, `
			INSERT INTO subgroups (id, group_id, name, created_by)
			VALUES ($1, $2, $3, $4)
		`, sg.ID, sg.GroupID, sg.Name, sg.CreatedBy)
		if err != nil {
			return fmt.Errorf("failed to create subgroup: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	group.Subgroups = subgroups
	return nil
}

func (r *groupRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	query := `
		SELECT id, name, status, created_at, published_at, created_by
		FROM groups
		WHERE id = $1
	`

	group := &models.Group{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Status,
		&group.CreatedAt,
		&group.PublishedAt,
		&group.CreatedBy,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

// ListGroupsWithTree возвращает все группы вместе с подгруппами и ссылками.
// Три запроса вместо N+1, дерево собирается в памяти.
func (r *groupRepository) ListGroupsWithTree(ctx context.Context) ([]*models.Group, error) {
	groupRows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, status, created_at, published_at, created_by
		FROM groups
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer groupRows.Close()

	// Не nil: пустой список групп сериализуется в [], а не в null
	groups := []*models.Group{}
	byGroupID := make(map[string]*models.Group)
	for groupRows.Next() {
		g := &models.Group{}
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Status, &g.CreatedAt, &g.PublishedAt, &g.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.Subgroups = []*models.Subgroup{}
		groups = append(groups, g)
		byGroupID[g.ID] = g
	}
	if err := groupRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	sgRows, err := r.db.Pool.Query(ctx, `
		SELECT id, group_id, name, created_by
		FROM subgroups
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subgroups: %w", err)
	}
	defer sgRows.Close()

	bySubgroupID := make(map[string]*models.Subgroup)
	for sgRows.Next() {
		sg := &models.Subgroup{}
		if err := sgRows.Scan(&sg.ID, &sg.GroupID, &sg.Name, &sg.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan subgroup: %w", err)
		}
		sg.Links = []*models.Link{}
		if g, ok := byGroupID[sg.GroupID]; ok {
			g.Subgroups = append(g.Subgroups, sg)
		}
		bySubgroupID[sg.ID] = sg
	}
	if err := sgRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subgroups: %w", err)
	}

	linkRows, err := r.db.Pool.Query(ctx, `
		SELECT id, subgroup_id, label, target_url, short_code, clicks, created_at, expires_at, created_by
		FROM links
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		l := &models.Link{}
		if err := linkRows.Scan(&l.ID, &l.SubgroupID, &l.Label, &l.TargetURL, &l.ShortCode, &l.Clicks, &l.CreatedAt, &l.ExpiresAt, &l.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		if sg, ok := bySubgroupID[l.SubgroupID]; ok {
			sg.Links = append(sg.Links, l)
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return groups, nil
}

func (r *groupRepository) RenameGroup(ctx context.Context, id, name string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE groups SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// SetGroupStatus применяет переход статуса; published_at передаётся вызывающим
// (сервис решает, штамповать ли его заново)
func (r *groupRepository) SetGroupStatus(ctx context.Context, id string, status models.GroupStatus, publishedAt *time.Time) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE groups SET status = $2, published_at = $3 WHERE id = $1
	`, id, status, publishedAt)
	if err != nil {
		return fmt.Errorf("failed to set group status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// DeleteGroupCascade удаляет группу вместе со всеми подгруппами и ссылками
// одной транзакцией. Возвращает короткие коды удалённых ссылок, чтобы
// вызывающий сбросил их из кэша.
func (r *groupRepository) DeleteGroupCascade(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	codes, err := collectShortCodes(ctx, tx, `
		SELECT l.short_code
		FROM links l
		JOIN subgroups s ON l.subgroup_id = s.id
		WHERE s.group_id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM links WHERE subgroup_id IN (SELECT id FROM subgroups WHERE group_id = $1)
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete group links: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM subgroups WHERE group_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete subgroups: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrGroupNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}

	return codes, nil
}

func (r *groupRepository) CreateSubgroup(ctx context.Context, subgroup *models.Subgroup) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO subgroups (id, group_id, name, created_by)
		VALUES ($1, $2, $3, $4)
	`, subgroup.ID, subgroup.GroupID, subgroup.Name, subgroup.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create subgroup: %w", err)
	}
	return nil
}

func (r *groupRepository) GetSubgroup(ctx context.Context, id string) (*models.Subgroup, error) {
	query := `SELECT id, group_id, name, created_by FROM subgroups WHERE id = $1`

	sg := &models.Subgroup{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&sg.ID, &sg.GroupID, &sg.Name, &sg.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubgroupNotFound
		}
		return nil, fmt.Errorf("failed to get subgroup: %w", err)
	}

	return sg, nil
}

func (r *groupRepository) RenameSubgroup(ctx context.Context, id, name string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE subgroups SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("failed to rename subgroup: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSubgroupNotFound
	}
	return nil
}

// DeleteSubgroupCascade удаляет подгруппу и её ссылки одной транзакцией
func (r *groupRepository) DeleteSubgroupCascade(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	codes, err := collectShortCodes(ctx, tx, `SELECT short_code FROM links WHERE subgroup_id = $1`, id)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `DELETE FROM links WHERE subgroup_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete subgroup links: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM subgroups WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete subgroup: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrSubgroupNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}

	return codes, nil
}

func collectShortCodes(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to collect short codes: %w", err)
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
