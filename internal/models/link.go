package models

import (
	"time"
)

type Link struct {
	ID         string    `json:"id"`
	SubgroupID string    `json:"subgroup_id"`
	Label      string    `json:"label"`
	TargetURL  string    `json:"target_url"`
	ShortCode  string    `json:"short_code"`
	Clicks     int64     `json:"clicks"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedBy  string    `json:"created_by"`
}

type CreateLinksInput struct {
	Count     int    `json:"count" binding:"required,min=1,max=100"`
	Label     string `json:"label"`
	TargetURL string `json:"target_url" binding:"required,url"`
	ExpiresAt string `json:"expires_at" binding:"required"` // YYYY-MM-DD
}

type UpdateLinkInput struct {
	Label     *string `json:"label,omitempty"`
	TargetURL *string `json:"target_url,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"` // YYYY-MM-DD
}

// ResolveTarget плоский результат join'а Link → Subgroup → Group,
// ровно то, что нужно конвейеру редиректа (и что кэшируется в Redis).
type ResolveTarget struct {
	LinkID      string      `json:"link_id"`
	ShortCode   string      `json:"short_code"`
	TargetURL   string      `json:"target_url"`
	GroupID     string      `json:"group_id"`
	GroupStatus GroupStatus `json:"group_status"`
	ExpiresAt   time.Time   `json:"expires_at"`
}
