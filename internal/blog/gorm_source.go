package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dbutil "github.com/momen-meetup/meetup/internal/db"
	"github.com/momen-meetup/meetup/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSource serves posts from the blog_posts table.
type GormSource struct {
	db *gorm.DB
}

// NewGormSource constructs a GormSource.
func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

// All returns every post, newest first.
func (s *GormSource) All(ctx context.Context) ([]Post, error) {
	var rows []models.BlogPost
	if errFind := s.db.WithContext(ctx).
		Order("published_at DESC, slug ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("blog: list posts: %w", errFind)
	}
	return toPosts(rows), nil
}

// BySlug returns the post with slug.
func (s *GormSource) BySlug(ctx context.Context, slug string) (Post, bool, error) {
	var row models.BlogPost
	if errFind := s.db.WithContext(ctx).
		Where("slug = ?", slug).
		Take(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Post{}, false, nil
		}
		return Post{}, false, fmt.Errorf("blog: find post %s: %w", slug, errFind)
	}
	return toPost(row), true, nil
}

// ByTag returns posts carrying tag, newest first, ignoring case.
func (s *GormSource) ByTag(ctx context.Context, tag string) ([]Post, error) {
	var rows []models.BlogPost
	if errFind := s.db.WithContext(ctx).
		Where(dbutil.JSONArrayContainsExpr(s.db, "tag_keys"), dbutil.JSONArrayContainsValue(s.db, TagKey(tag))).
		Order("published_at DESC, slug ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("blog: list posts by tag: %w", errFind)
	}
	return toPosts(rows), nil
}

// Import makes the table mirror posts: rows are upserted by slug and rows
// whose slug is absent from posts are deleted. It returns the number of
// deleted rows.
func (s *GormSource) Import(ctx context.Context, posts []Post) (int64, error) {
	rows := make([]models.BlogPost, 0, len(posts))
	slugs := make([]string, 0, len(posts))
	for _, p := range posts {
		tags, errTags := json.Marshal(nonNilTags(p.Tags))
		if errTags != nil {
			return 0, fmt.Errorf("blog: encode tags %s: %w", p.Slug, errTags)
		}
		keys := make([]string, 0, len(p.Tags))
		for _, tag := range p.Tags {
			keys = append(keys, TagKey(tag))
		}
		tagKeys, errKeys := json.Marshal(keys)
		if errKeys != nil {
			return 0, fmt.Errorf("blog: encode tag keys %s: %w", p.Slug, errKeys)
		}
		rows = append(rows, models.BlogPost{
			Slug:        p.Slug,
			Title:       p.Title,
			Description: p.Description,
			Author:      p.Author,
			Tags:        datatypes.JSON(tags),
			TagKeys:     datatypes.JSON(tagKeys),
			Image:       p.Image,
			ReadTime:    p.ReadTime,
			Content:     p.Content,
			PublishedAt: p.Date.UTC(),
		})
		slugs = append(slugs, p.Slug)
	}

	var pruned int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if errUpsert := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title",
					"description",
					"author",
					"tags",
					"tag_keys",
					"image",
					"read_time",
					"content",
					"published_at",
					"updated_at",
				}),
			}).Create(&rows).Error; errUpsert != nil {
				return fmt.Errorf("blog: import posts: %w", errUpsert)
			}
		}

		stale := tx.Where("1 = 1")
		if len(slugs) > 0 {
			stale = tx.Where("slug NOT IN ?", slugs)
		}
		res := stale.Delete(&models.BlogPost{})
		if res.Error != nil {
			return fmt.Errorf("blog: prune posts: %w", res.Error)
		}
		pruned = res.RowsAffected
		return nil
	})
	if errTx != nil {
		return 0, errTx
	}
	return pruned, nil
}

func toPosts(rows []models.BlogPost) []Post {
	out := make([]Post, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPost(row))
	}
	return out
}

func toPost(row models.BlogPost) Post {
	var tags []string
	if len(row.Tags) > 0 {
		if errTags := json.Unmarshal(row.Tags, &tags); errTags != nil {
			log.WithError(errTags).WithField("slug", row.Slug).Warn("blog: ignore unreadable tags")
			tags = nil
		}
	}
	return Post{
		Slug:        row.Slug,
		Title:       row.Title,
		Description: row.Description,
		Date:        row.PublishedAt.In(time.UTC),
		Author:      row.Author,
		Tags:        nonNilTags(tags),
		Image:       row.Image,
		ReadTime:    row.ReadTime,
		Content:     row.Content,
	}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
