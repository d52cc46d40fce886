package models

import (
	"time"
)

// GroupStatus статус публикации кампании
type GroupStatus string

const (
	StatusUnpublished GroupStatus = "unpublished"
	StatusPublished   GroupStatus = "published"
)

func (s GroupStatus) Valid() bool {
	return s == StatusUnpublished || s == StatusPublished
}

type Group struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      GroupStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
	CreatedBy   string      `json:"created_by"`
	Subgroups   []*Subgroup `json:"subgroups,omitempty"`
}

type Subgroup struct {
	ID        string  `json:"id"`
	GroupID   string  `json:"group_id"`
	Name      string  `json:"name"`
	CreatedBy string  `json:"created_by"`
	Links     []*Link `json:"links,omitempty"`
}

type CreateGroupInput struct {
	Name          string `json:"name" binding:"required"`
	SubgroupCount int    `json:"subgroups"`
}
