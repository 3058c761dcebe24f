package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/momen-meetup/meetup/internal/blog"
	"github.com/momen-meetup/meetup/internal/config"
	"github.com/momen-meetup/meetup/internal/db"
	"github.com/momen-meetup/meetup/internal/http/api/front"
	"github.com/momen-meetup/meetup/internal/http/api/front/handlers"
	"github.com/momen-meetup/meetup/internal/i18n"
	"github.com/momen-meetup/meetup/internal/logging"
	"github.com/momen-meetup/meetup/internal/metrics"
	"github.com/momen-meetup/meetup/internal/notify"
	"github.com/momen-meetup/meetup/internal/ratelimit"
	internalsettings "github.com/momen-meetup/meetup/internal/settings"
	"github.com/momen-meetup/meetup/internal/watcher"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Site is the assembled backend: the gin engine plus the resources it owns.
type Site struct {
	Config  config.Config
	Engine  *gin.Engine
	Metrics *metrics.Collector
	Posts   blog.Source
	I18n    *i18n.Resolver

	files   *blog.FileSource
	store   *blog.GormSource
	conn    *gorm.DB
	limiter *ratelimit.Manager
	watcher *watcher.ContentWatcher
}

// ConfigExists reports whether a config file is present at path.
func ConfigExists(path string) bool {
	info, errStat := os.Stat(path)
	return errStat == nil && !info.IsDir()
}

// Build wires every collaborator from cfg. Logging must already be set up.
func Build(ctx context.Context, cfg config.Config) (_ *Site, errBuild error) {
	site := &Site{Config: cfg, Metrics: metrics.NewCollector()}
	defer func() {
		if errBuild != nil {
			_ = site.Close()
		}
	}()

	limiterSettings := ratelimit.SettingsFromConfig(cfg.RateLimit)
	site.limiter = ratelimit.NewManager(func() ratelimit.SettingsConfig { return limiterSettings }, nil, nil)
	site.limiter.OnFallback(func(error) { site.Metrics.RecordLimiterFallback() })

	dispatcher := notify.NewResendDispatcher(cfg.Mail, &http.Client{})
	if !dispatcher.Configured() {
		log.Warn("mail api key not set, contact notifications will be skipped")
	}

	files, errFiles := blog.NewFileSource(cfg.Content.PostsDir)
	if errFiles != nil {
		return nil, errFiles
	}
	site.files = files
	site.Posts = files

	if cfg.Database.DSN != "" {
		conn, errOpen := db.Open(cfg.Database.DSN)
		if errOpen != nil {
			return nil, errOpen
		}
		if errMigrate := db.Migrate(conn); errMigrate != nil {
			return nil, errMigrate
		}
		site.conn = conn
		site.store = blog.NewGormSource(conn)
		site.Posts = site.store
		if cfg.Database.ImportPosts {
			if errImport := site.importPosts(ctx); errImport != nil {
				return nil, errImport
			}
		}
	}

	resolver, errI18n := i18n.NewResolver(cfg.Content.LocalesDir, cfg.Content.DefaultLocale)
	if errI18n != nil {
		return nil, errI18n
	}
	site.I18n = resolver

	if cfg.Content.Watch {
		w, errWatch := watcher.New(0,
			watcher.Target{Name: "posts", Dir: cfg.Content.PostsDir, Extensions: []string{".md"}, Reload: func() error {
				return site.reloadPosts(ctx)
			}},
			watcher.Target{Name: "locales", Dir: cfg.Content.LocalesDir, Extensions: []string{".yaml", ".yml"}, Reload: resolver.Reload},
		)
		if errWatch != nil {
			return nil, errWatch
		}
		site.watcher = w
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	front.RegisterFrontRoutes(engine, front.Dependencies{
		Contact: handlers.ContactOptions{
			Limiter:           site.limiter,
			Policy:            ratelimit.PolicyFromConfig(cfg.RateLimit),
			Dispatcher:        dispatcher,
			TrustForwardedFor: cfg.Server.TrustsForwardedFor(),
		},
		Posts:   site.Posts,
		I18n:    resolver,
		Metrics: site.Metrics,
		DB:      site.conn,
	})
	site.Engine = engine
	return site, nil
}

// Close releases the limiter backend and database handle.
func (s *Site) Close() error {
	var errs []error
	if errLimiter := s.limiter.Close(); errLimiter != nil {
		errs = append(errs, fmt.Errorf("close rate limiter: %w", errLimiter))
	}
	if s.conn != nil {
		if sqlDB, errDB := s.conn.DB(); errDB == nil {
			if errClose := sqlDB.Close(); errClose != nil {
				errs = append(errs, fmt.Errorf("close database: %w", errClose))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Site) importPosts(ctx context.Context) error {
	posts, errAll := s.files.All(ctx)
	if errAll != nil {
		return errAll
	}
	pruned, errImport := s.store.Import(ctx, posts)
	if errImport != nil {
		return errImport
	}
	log.WithFields(log.Fields{
		"posts":  len(posts),
		"pruned": pruned,
	}).Info("blog: synced markdown posts into database")
	return nil
}

func (s *Site) reloadPosts(ctx context.Context) error {
	if errReload := s.files.Reload(); errReload != nil {
		return errReload
	}
	if s.store != nil && s.Config.Database.ImportPosts {
		return s.importPosts(ctx)
	}
	return nil
}

// RunServer loads config, boots the site API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	siteCfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	if port > 0 {
		siteCfg.Server.Port = port
	}

	logCloser, errLog := logging.Setup(siteCfg.Logging)
	if errLog != nil {
		return errLog
	}
	defer func(c io.Closer) {
		if errClose := c.Close(); errClose != nil {
			fmt.Fprintf(os.Stderr, "close log file: %v\n", errClose)
		}
	}(logCloser)

	if !ConfigExists(configPath) {
		log.Infof("config not found at %s, using defaults", configPath)
	}

	site, errBuild := Build(ctx, siteCfg)
	if errBuild != nil {
		return errBuild
	}
	defer func() {
		if errClose := site.Close(); errClose != nil {
			log.WithError(errClose).Warn("shutdown cleanup failed")
		}
	}()

	if site.watcher != nil {
		go func() {
			if errRun := site.watcher.Run(ctx); errRun != nil {
				log.WithError(errRun).Warn("content watcher stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", siteCfg.Server.Port),
		Handler:           site.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.WithFields(log.Fields{
		"addr":       srv.Addr,
		"rate_limit": siteCfg.RateLimit.String(),
		"redis":      siteCfg.RateLimit.Redis.Enabled,
		"database":   siteCfg.Database.DSN != "",
	}).Infof("starting %s api", internalsettings.SiteName)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("http request")
	}
}
