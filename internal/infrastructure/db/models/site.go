package models

import "time"

type Organization struct {
	ID        string `gorm:"type:text;primaryKey"`
	Plan      string `gorm:"type:text;not null;default:'free'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Organization) TableName() string {
	return "organizations"
}

type Site struct {
	ID             int64        `gorm:"primaryKey"`
	OrganizationID string       `gorm:"type:text;index;not null"`
	Organization   Organization `gorm:"foreignKey:OrganizationID"`
	Domain         string       `gorm:"size:255;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Site) TableName() string {
	return "sites"
}
