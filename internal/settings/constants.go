package settings

import "time"

// Defaults applied when the config file and environment leave a value unset.
const (
	// SiteName is the public name used in notification templates.
	SiteName = "Momen meetup"
	// DefaultContactMaxTokens is the number of contact submissions allowed per window.
	DefaultContactMaxTokens = 5
	// DefaultContactRefillInterval is the contact rate limit window.
	DefaultContactRefillInterval = 60 * time.Second
	// DefaultCleanupInterval throttles the in-memory bucket sweep.
	DefaultCleanupInterval = 60 * time.Second
	// DefaultRateLimitMode selects the fixed-window reset limiter.
	DefaultRateLimitMode = "fixed"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "meetup:rl"
	// DefaultMailEndpoint is the transactional email API base URL.
	DefaultMailEndpoint = "https://api.resend.com"
	// DefaultMailFrom is the sender address for contact notifications.
	DefaultMailFrom = "Momen meetup <noreply@momen-meetup.com>"
	// DefaultMailTo is the recipient address for contact notifications.
	DefaultMailTo = "hello@momen.be"
	// DefaultMailTimeout bounds a single notification attempt.
	DefaultMailTimeout = 5 * time.Second
	// DefaultLocale is the fallback locale for translation lookups.
	DefaultLocale = "fr"
	// DefaultPostsDir is where markdown blog posts live.
	DefaultPostsDir = "./content/blog"
	// DefaultLocalesDir is where locale YAML files live.
	DefaultLocalesDir = "./content/locales"
	// DefaultPort is the HTTP listen port.
	DefaultPort = 8080
)

// SupportedLocales lists the locales served by the site.
var SupportedLocales = []string{"fr", "en", "nl"}
