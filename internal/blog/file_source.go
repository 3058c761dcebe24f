package blog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// FileSource serves posts parsed from *.md files in a directory. The file
// name without extension is the slug.
type FileSource struct {
	dir string

	mu     sync.RWMutex
	posts  []Post
	bySlug map[string]int
}

// NewFileSource loads every post under dir. A missing directory yields an
// empty source.
func NewFileSource(dir string) (*FileSource, error) {
	s := &FileSource{dir: dir, bySlug: map[string]int{}}
	if errReload := s.Reload(); errReload != nil {
		return nil, errReload
	}
	return s, nil
}

// Dir returns the watched directory.
func (s *FileSource) Dir() string { return s.dir }

// Reload re-reads the directory. Files that fail to parse are skipped and
// logged; the previous set is kept if the directory cannot be read.
func (s *FileSource) Reload() error {
	entries, errRead := os.ReadDir(s.dir)
	if errRead != nil && !errors.Is(errRead, fs.ErrNotExist) {
		return fmt.Errorf("blog: read %s: %w", s.dir, errRead)
	}

	posts := make([]Post, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".md") || strings.HasPrefix(name, ".") {
			continue
		}
		data, errFile := os.ReadFile(filepath.Join(s.dir, name))
		if errFile != nil {
			log.WithError(errFile).WithField("file", name).Warn("blog: read post failed")
			continue
		}
		post, errParse := ParsePost(strings.TrimSuffix(name, filepath.Ext(name)), data)
		if errParse != nil {
			log.WithError(errParse).WithField("file", name).Warn("blog: skip invalid post")
			continue
		}
		posts = append(posts, post)
	}
	sortPosts(posts)

	index := make(map[string]int, len(posts))
	for i, p := range posts {
		index[p.Slug] = i
	}

	s.mu.Lock()
	s.posts = posts
	s.bySlug = index
	s.mu.Unlock()
	log.Debugf("blog: loaded %d posts from %s", len(posts), s.dir)
	return nil
}

// All returns every post, newest first.
func (s *FileSource) All(_ context.Context) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Post, len(s.posts))
	copy(out, s.posts)
	return out, nil
}

// BySlug returns the post with slug.
func (s *FileSource) BySlug(_ context.Context, slug string) (Post, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.bySlug[slug]
	if !ok {
		return Post{}, false, nil
	}
	return s.posts[i], true, nil
}

// ByTag returns posts carrying tag, newest first.
func (s *FileSource) ByTag(_ context.Context, tag string) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Post, 0)
	for _, p := range s.posts {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out, nil
}
