package repository

import (
	"context"
	"fmt"

	"github.com/inspeaker/smartlink/internal/models"
)

// AuditRepository append-only журнал: только вставка, никаких update/delete
type AuditRepository interface {
	Insert(ctx context.Context, record *models.AuditRecord) error
}

type auditRepository struct {
	db *PostgresDB
}

func NewAuditRepository(db *PostgresDB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO audit_logs (entity_type, entity_id, action, actor_email, created_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		record.EntityType,
		record.EntityID,
		record.Action,
		record.ActorEmail,
		record.Timestamp,
		record.Details,
	)

	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// ErrorLogRepository коллаборатор логирования ошибок: пишет независимо от
// пути ответа, его сбои никогда не эскалируются
type ErrorLogRepository interface {
	Insert(ctx context.Context, entry *models.ErrorLog) error
}

type errorLogRepository struct {
	db *PostgresDB
}

func NewErrorLogRepository(db *PostgresDB) ErrorLogRepository {
	return &errorLogRepository{db: db}
}

func (r *errorLogRepository) Insert(ctx context.Context, entry *models.ErrorLog) error {
	query := `
		INSERT INTO error_logs (endpoint, method, message, stacktrace, request_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.Endpoint,
		entry.Method,
		entry.Message,
		entry.Stacktrace,
		entry.RequestContext,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert error log: %w", err)
	}

	return nil
}
