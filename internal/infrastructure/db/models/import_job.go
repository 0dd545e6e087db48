package models

import "time"

type ImportJob struct {
	ID                  string    `gorm:"type:uuid;primaryKey"`
	SiteID              int64     `gorm:"not null;index"`
	OrganizationID      string    `gorm:"type:text;not null;index"`
	Platform            string    `gorm:"type:text;not null"`
	SourceRef           string    `gorm:"type:text;not null;default:''"`
	Status              string    `gorm:"type:text;not null"`
	ImportedEvents      int64     `gorm:"not null;default:0"`
	SkippedEvents       int64     `gorm:"not null;default:0"`
	InvalidEvents       int64     `gorm:"not null;default:0"`
	ErrorMessage        *string   `gorm:"type:text"`
	EarliestAllowedDate time.Time `gorm:"type:date;not null"`
	LatestAllowedDate   time.Time `gorm:"type:date;not null"`
	StartedAt           time.Time `gorm:"not null"`
	CompletedAt         *time.Time
	UpdatedAt           time.Time
}

func (ImportJob) TableName() string {
	return "import_jobs"
}
