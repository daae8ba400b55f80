package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type WorkspaceModel struct {
	ID            string  `gorm:"primaryKey"`
	OwnerID       string  `gorm:"not null;index"`
	Name          string  `gorm:"not null"`
	Keywords      *string `gorm:"type:text"`
	Frequency     string  `gorm:"not null;default:daily"`
	LastScrapedAt *time.Time
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (WorkspaceModel) TableName() string { return "workspaces" }

type SignalModel struct {
	ID          string         `gorm:"primaryKey"`
	WorkspaceID string         `gorm:"not null;index:idx_signals_workspace_status,priority:1"`
	Platform    string         `gorm:"not null"`
	Author      string         `gorm:"not null"`
	Content     string         `gorm:"type:text;not null"`
	URL         string         `gorm:"type:text"`
	Status      string         `gorm:"not null;index:idx_signals_workspace_status,priority:2"`
	ReplyText   string         `gorm:"type:text"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	DedupKey    *string        `gorm:"uniqueIndex"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

func (SignalModel) TableName() string { return "signals" }

// DeletedSignalKeyModel remembers the dedup key of a permanently deleted
// signal so later scrapes skip the same upstream item.
type DeletedSignalKeyModel struct {
	DedupKey    string    `gorm:"primaryKey"`
	WorkspaceID string    `gorm:"not null;index"`
	RemovedAt   time.Time `gorm:"not null"`
}

func (DeletedSignalKeyModel) TableName() string { return "deleted_signal_keys" }
