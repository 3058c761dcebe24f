package models

import (
	"time"

	"gorm.io/datatypes"
)

// BlogPost stores a published blog article.
type BlogPost struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug        string         `gorm:"type:varchar(255);not null;uniqueIndex"` // URL slug.
	Title       string         `gorm:"type:varchar(255);not null"`             // Post title.
	Description string         `gorm:"type:text"`                              // Summary shown in listings.
	Author      string         `gorm:"type:varchar(255)"`                      // Author display name.
	Tags        datatypes.JSON `gorm:"not null"`                               // Tag list as a JSON array.
	TagKeys     datatypes.JSON `gorm:"not null;default:'[]'"`                  // Lower-cased tags used for lookups.
	Image       string         `gorm:"type:varchar(512)"`                      // Optional cover image path.
	ReadTime    int            `gorm:"not null;default:1"`                     // Estimated minutes to read.
	Content     string         `gorm:"type:text;not null"`                     // Markdown body without front matter.

	PublishedAt time.Time `gorm:"not null;index"` // Publication date.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
