package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/momen-meetup/meetup/internal/blog"
	log "github.com/sirupsen/logrus"
)

// BlogFrontHandler serves blog post endpoints.
type BlogFrontHandler struct {
	source blog.Source
}

// NewBlogFrontHandler constructs a BlogFrontHandler.
func NewBlogFrontHandler(source blog.Source) *BlogFrontHandler {
	return &BlogFrontHandler{source: source}
}

// List returns post summaries, newest first, optionally filtered by ?tag=.
func (h *BlogFrontHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	tag := strings.TrimSpace(c.Query("tag"))

	var (
		posts   []blog.Post
		errList error
	)
	if tag != "" {
		posts, errList = h.source.ByTag(ctx, tag)
	} else {
		posts, errList = h.source.All(ctx)
	}
	if errList != nil {
		log.WithError(errList).Error("blog: list posts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list posts failed"})
		return
	}

	out := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		out = append(out, gin.H{
			"slug":        post.Slug,
			"title":       post.Title,
			"description": post.Description,
			"date":        post.Date,
			"author":      post.Author,
			"tags":        post.Tags,
			"image":       post.Image,
			"readTime":    post.ReadTime,
		})
	}
	c.JSON(http.StatusOK, gin.H{"posts": out})
}

// Get returns one post with its rendered body.
func (h *BlogFrontHandler) Get(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	post, ok, errGet := h.source.BySlug(c.Request.Context(), slug)
	if errGet != nil {
		log.WithError(errGet).WithField("slug", slug).Error("blog: load post failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load post failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	blocks := blog.Render(post.Content)
	c.JSON(http.StatusOK, gin.H{
		"post":   post,
		"blocks": blocks,
		"html":   blog.RenderHTML(blocks),
	})
}
