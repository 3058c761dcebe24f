package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/momen-meetup/meetup/internal/i18n"
)

// I18nFrontHandler exposes translation lookups.
type I18nFrontHandler struct {
	resolver *i18n.Resolver
}

// NewI18nFrontHandler constructs an I18nFrontHandler.
func NewI18nFrontHandler(resolver *i18n.Resolver) *I18nFrontHandler {
	return &I18nFrontHandler{resolver: resolver}
}

// Locales lists the loaded locales and the default.
func (h *I18nFrontHandler) Locales(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"locales": h.resolver.Locales(),
		"default": h.resolver.DefaultLocale(),
	})
}

// Lookup resolves ?key= for the locale in the path. Unknown locales answer
// from the default locale.
func (h *I18nFrontHandler) Lookup(c *gin.Context) {
	locale := strings.ToLower(strings.TrimSpace(c.Param("locale")))
	if !h.resolver.HasLocale(locale) {
		locale = h.resolver.DefaultLocale()
	}
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	value, ok := h.resolver.TRaw(locale, key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "translation not found", "locale": locale, "key": key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locale": locale, "key": key, "value": value})
}
