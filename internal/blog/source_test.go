package blog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	dbutil "github.com/momen-meetup/meetup/internal/db"
	"github.com/momen-meetup/meetup/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const samplePost = `---
title: Go meetup recap
description: Notes from the March session
date: 2025-03-14
author: Momen team
tags: [go, community]
---

# Recap

Thanks for coming!
`

func writePost(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestParsePost(t *testing.T) {
	post, err := ParsePost("go-recap", []byte(strings.ReplaceAll(samplePost, "\n", "\r\n")))
	require.NoError(t, err)

	assert.Equal(t, "go-recap", post.Slug)
	assert.Equal(t, "Go meetup recap", post.Title)
	assert.Equal(t, "Momen team", post.Author)
	assert.Equal(t, []string{"go", "community"}, post.Tags)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), post.Date)
	assert.Equal(t, 1, post.ReadTime)
	assert.True(t, strings.HasPrefix(post.Content, "# Recap"))
}

func TestParsePostErrors(t *testing.T) {
	_, err := ParsePost("x", []byte("# no header"))
	assert.True(t, errors.Is(err, ErrNoFrontMatter))

	_, err = ParsePost("x", []byte("---\ntitle: t\n"))
	assert.True(t, errors.Is(err, ErrNoFrontMatter))

	_, err = ParsePost("x", []byte("---\ndate: yesterday\n---\nbody"))
	assert.Error(t, err)
}

func TestParsePostDefaults(t *testing.T) {
	post, err := ParsePost("empty-header", []byte("---\n---\nhello"))
	require.NoError(t, err)
	assert.Equal(t, "empty-header", post.Title)
	assert.Equal(t, []string{}, post.Tags)
	assert.Equal(t, "hello", post.Content)
}

func TestEstimateReadTime(t *testing.T) {
	assert.Equal(t, 1, EstimateReadTime(""))
	assert.Equal(t, 1, EstimateReadTime(strings.Repeat("word ", 200)))
	assert.Equal(t, 2, EstimateReadTime(strings.Repeat("word ", 201)))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	writePost(t, dir, "go-recap.md", samplePost)
	writePost(t, dir, "older.md", "---\ntitle: Older\ndate: 2024-01-01\ntags: [Go]\nreadTime: 7\n---\nbody")
	writePost(t, dir, "broken.md", "no front matter")
	writePost(t, dir, "notes.txt", "---\ntitle: ignored\n---\n")

	src, err := NewFileSource(dir)
	require.NoError(t, err)
	ctx := context.Background()

	all, err := src.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "go-recap", all[0].Slug, "newest first")
	assert.Equal(t, 7, all[1].ReadTime)

	post, ok, err := src.BySlug(ctx, "older")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Older", post.Title)

	_, ok, err = src.BySlug(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	tagged, err := src.ByTag(ctx, "go")
	require.NoError(t, err)
	assert.Len(t, tagged, 2, "tag match ignores case")

	writePost(t, dir, "newest.md", "---\ntitle: Newest\ndate: 2026-01-01\n---\nhi")
	require.NoError(t, src.Reload())
	all, _ = src.All(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, "newest", all[0].Slug)
}

func TestFileSourceMissingDir(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	all, err := src.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGormSourceImportAndQuery(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbutil.Migrate(conn))

	post, err := ParsePost("go-recap", []byte(samplePost))
	require.NoError(t, err)
	other := Post{Slug: "older", Title: "Older", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Tags: []string{"meetup"}, ReadTime: 1, Content: "x"}

	src := NewGormSource(conn)
	ctx := context.Background()
	pruned, err := src.Import(ctx, []Post{other, post})
	require.NoError(t, err)
	assert.Zero(t, pruned)

	post.Title = "Go meetup recap (updated)"
	pruned, err = src.Import(ctx, []Post{other, post})
	require.NoError(t, err)
	assert.Zero(t, pruned)

	all, err := src.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "go-recap", all[0].Slug)
	assert.Equal(t, "Go meetup recap (updated)", all[0].Title)
	assert.Equal(t, []string{"go", "community"}, all[0].Tags)
	assert.True(t, all[0].Date.Equal(post.Date))

	got, ok, err := src.BySlug(ctx, "older")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"meetup"}, got.Tags)

	_, ok, err = src.BySlug(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	tagged, err := src.ByTag(ctx, "community")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "go-recap", tagged[0].Slug)
}

func TestGormSourceImportPrunesRemovedPosts(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "prune.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbutil.Migrate(conn))

	src := NewGormSource(conn)
	ctx := context.Background()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	keep := Post{Slug: "keep", Title: "Keep", Date: day, ReadTime: 1, Content: "x"}
	drop := Post{Slug: "drop", Title: "Drop", Date: day, ReadTime: 1, Content: "y"}

	_, err = src.Import(ctx, []Post{keep, drop})
	require.NoError(t, err)

	pruned, err := src.Import(ctx, []Post{keep})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
	all, err := src.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].Slug)

	pruned, err = src.Import(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)
	all, err = src.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTagMatchingIgnoresCaseOnBothSources(t *testing.T) {
	dir := t.TempDir()
	writePost(t, dir, "recap.md", samplePost)
	writePost(t, dir, "launch.md", "---\ntitle: Launch\ndate: 2025-04-01\ntags: [News]\n---\nHello.")
	files, err := NewFileSource(dir)
	require.NoError(t, err)

	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tags.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbutil.Migrate(conn))
	store := NewGormSource(conn)

	ctx := context.Background()
	posts, err := files.All(ctx)
	require.NoError(t, err)
	_, err = store.Import(ctx, posts)
	require.NoError(t, err)

	for _, tag := range []string{"NEWS", "news", "News", "COMMUNITY", "Go"} {
		fromFiles, err := files.ByTag(ctx, tag)
		require.NoError(t, err)
		fromDB, err := store.ByTag(ctx, tag)
		require.NoError(t, err)
		require.Len(t, fromFiles, 1, tag)
		require.Len(t, fromDB, 1, tag)
		assert.Equal(t, fromFiles[0].Slug, fromDB[0].Slug, tag)
	}

	launch, ok, err := store.BySlug(ctx, "launch")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"News"}, launch.Tags)
}

func TestGormSourceToleratesUnreadableTags(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "corrupt.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbutil.Migrate(conn))
	require.NoError(t, conn.Create(&models.BlogPost{
		Slug:        "broken",
		Title:       "Broken",
		Tags:        datatypes.JSON("not json"),
		TagKeys:     datatypes.JSON("[]"),
		Content:     "x",
		PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	post, ok, err := NewGormSource(conn).BySlug(context.Background(), "broken")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{}, post.Tags)
}
