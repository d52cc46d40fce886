package models

import (
	"time"
)

// Действия, фиксируемые в журнале аудита
const (
	ActionCreate         = "CREATE"
	ActionRename         = "RENAME"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionPublish        = "PUBLISH"
	ActionUnpublish      = "UNPUBLISH"
	ActionBlocked        = "REDIRECT_BLOCKED"
	ActionClickReal      = "CLICK_REAL"
	ActionCrawlerPreview = "CRAWLER_PREVIEW"
)

// SystemActor подставляется, когда действие не атрибутировано пользователю
const SystemActor = "system"

// AuditRecord неизменяемая запись журнала: только вставка, без обновлений
type AuditRecord struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	ActorEmail string    `json:"actor_email"`
	Timestamp  time.Time `json:"timestamp"`
	Details    string    `json:"details"`
}

// ErrorLog запись коллаборатора логирования ошибок (см. error_logs)
type ErrorLog struct {
	ID             int64     `json:"id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	Message        string    `json:"message"`
	Stacktrace     string    `json:"stacktrace"`
	RequestContext string    `json:"request_context"`
	CreatedAt      time.Time `json:"created_at"`
}
