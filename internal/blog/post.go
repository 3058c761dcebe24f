package blog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Post is a blog article with its markdown body.
type Post struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags"`
	Image       string    `json:"image,omitempty"`
	ReadTime    int       `json:"readTime"`
	Content     string    `json:"content"`
}

// HasTag reports whether the post carries tag, ignoring case.
func (p Post) HasTag(tag string) bool {
	key := TagKey(tag)
	for _, t := range p.Tags {
		if TagKey(t) == key {
			return true
		}
	}
	return false
}

// TagKey is the form tags are compared in.
func TagKey(tag string) string {
	return strings.ToLower(tag)
}

// Source provides blog posts.
type Source interface {
	All(ctx context.Context) ([]Post, error)
	BySlug(ctx context.Context, slug string) (Post, bool, error)
	ByTag(ctx context.Context, tag string) ([]Post, error)
}

// ErrNoFrontMatter indicates a markdown file without a leading --- block.
var ErrNoFrontMatter = errors.New("blog: missing front matter")

const wordsPerMinute = 200

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

type frontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Date        string   `yaml:"date"`
	Author      string   `yaml:"author"`
	Tags        []string `yaml:"tags"`
	Image       string   `yaml:"image"`
	ReadTime    int      `yaml:"readTime"`
}

// ParsePost splits YAML front matter from the markdown body.
func ParsePost(slug string, data []byte) (Post, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, []byte("---\n")) {
		return Post{}, fmt.Errorf("%w: %s", ErrNoFrontMatter, slug)
	}
	rest := data[len("---\n"):]
	var header, body []byte
	if bytes.HasPrefix(rest, []byte("---\n")) {
		body = rest[len("---\n"):]
	} else {
		end := bytes.Index(rest, []byte("\n---"))
		if end < 0 {
			return Post{}, fmt.Errorf("%w: %s (unterminated)", ErrNoFrontMatter, slug)
		}
		header = rest[:end]
		body = rest[end+len("\n---"):]
		if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = nil
		}
	}

	var fm frontMatter
	if errUnmarshal := yaml.Unmarshal(header, &fm); errUnmarshal != nil {
		return Post{}, fmt.Errorf("blog: parse front matter %s: %w", slug, errUnmarshal)
	}

	post := Post{
		Slug:        slug,
		Title:       strings.TrimSpace(fm.Title),
		Description: strings.TrimSpace(fm.Description),
		Author:      strings.TrimSpace(fm.Author),
		Tags:        fm.Tags,
		Image:       strings.TrimSpace(fm.Image),
		ReadTime:    fm.ReadTime,
		Content:     strings.TrimLeft(string(body), "\n"),
	}
	if post.Title == "" {
		post.Title = slug
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if raw := strings.TrimSpace(fm.Date); raw != "" {
		date, errDate := parseDate(raw)
		if errDate != nil {
			return Post{}, fmt.Errorf("blog: %s: %w", slug, errDate)
		}
		post.Date = date
	}
	if post.ReadTime <= 0 {
		post.ReadTime = EstimateReadTime(post.Content)
	}
	return post, nil
}

// EstimateReadTime returns whole minutes at 200 words per minute, at least 1.
func EstimateReadTime(content string) int {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// sortPosts orders newest first, then by slug.
func sortPosts(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.After(posts[j].Date)
		}
		return posts[i].Slug < posts[j].Slug
	})
}
