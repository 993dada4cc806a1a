// Package cli provides the command-line entry point that wires every core
// subsystem together and runs the HTTP server: configuration, logging, the
// durable and hot stores, the EPC resolver, the content graph, templates,
// RBAC, auth, the plugin host, CSV disaster recovery, and the request
// pipeline.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reedcms/reed/api"
	"github.com/reedcms/reed/auth"
	"github.com/reedcms/reed/buildinfo"
	"github.com/reedcms/reed/config"
	"github.com/reedcms/reed/csvrecovery"
	"github.com/reedcms/reed/durable"
	"github.com/reedcms/reed/epc"
	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/pluginhost"
	"github.com/reedcms/reed/rbac"
	"github.com/reedcms/reed/requestpipeline"
	"github.com/reedcms/reed/snippet"
	"github.com/reedcms/reed/templates"
	"github.com/reedcms/reed/ucg"
	"github.com/reedcms/reed/webassets"
)

// cfgFile holds the path to the configuration file given via --config.
//
// Configuration File Search Order (when cfgFile is empty):
//  1. $HOME/reed.yaml
//  2. ./reed.yaml
//  3. REED_-prefixed environment variables
var cfgFile string

// RootCmd is the core's entry-point command: it loads configuration, wires
// every subsystem, and serves HTTP until it receives SIGINT/SIGTERM.
var RootCmd = &cobra.Command{
	Use:   "reed",
	Short: "ReedCMS core server",
	Long: `ReedCMS core

A content management engine built around a Universal Content Graph (UCG):
every piece of content, structural or editorial, is a node in one graph,
addressed by path and rendered through theme-aware, locale-aware templates.

The server exposes:
- Content graph CRUD and query under /api
- Session and token authentication under /auth
- Theme-resolved page rendering and static assets
- A Lua plugin host reacting to content lifecycle hooks

Configuration can be provided via command-line flags, environment variables
(REED_ prefix), or a reed.yaml file, with flags taking precedence.`,
	RunE: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/reed.yaml)")
	RootCmd.PersistentFlags().Int("port", 0, "HTTP server port")
	RootCmd.PersistentFlags().String("store-durable-url", "", "durable store (postgres) connection string")
	RootCmd.PersistentFlags().String("store-hot-url", "", "hot store (redis) connection string")
	RootCmd.PersistentFlags().String("content-themes-dir", "", "themes directory")
	RootCmd.PersistentFlags().String("auth-jwt-secret", "", "JWT/session signing secret")

	viper.BindPFlag("server.port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("store.durable.url", RootCmd.PersistentFlags().Lookup("store-durable-url"))
	viper.BindPFlag("store.hot.url", RootCmd.PersistentFlags().Lookup("store-hot-url"))
	viper.BindPFlag("content.themes_dir", RootCmd.PersistentFlags().Lookup("content-themes-dir"))
	viper.BindPFlag("auth.jwt_secret", RootCmd.PersistentFlags().Lookup("auth-jwt-secret"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("reed")
	}

	viper.SetEnvPrefix("REED")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// runServer loads configuration, constructs every subsystem, and serves
// HTTP until an interrupt or SIGTERM triggers graceful shutdown.
func runServer(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(afero.NewOsFs())
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	} else {
		loader.AddConfigPath(".")
	}
	if err := loader.BindPFlags(cmd.PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := loader.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := logging.Level(cfg.Log.Level)
	logger := logging.NewContextLogger(logging.New(logging.Config{Level: logLevel, Format: cfg.Log.Format, Service: "reed"}), nil)
	logger.WithField("version", buildinfo.Get().Version).Info("starting reed core")

	ctx := context.Background()

	hot, err := hotstore.New(ctx, hotstore.Config{URL: cfg.Store.HotURL, TTLOverride: ttlClasses(cfg.HotStoreTTL)})
	if err != nil {
		return fmt.Errorf("connect hot store: %w", err)
	}

	pool, err := durable.NewPool(ctx, cfg.Store.DurableURL)
	if err != nil {
		return fmt.Errorf("connect durable store: %w", err)
	}
	durableStore := durable.NewStore(pool)

	gormDB, err := durable.OpenGorm(cfg.Store.DurableURL)
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}

	themeRegistry := epc.NewThemeRegistry()
	osFs := afero.NewOsFs()
	resolver, err := epc.New(epc.Config{Fs: osFs, ThemesDir: cfg.Content.ThemesDir, Registry: themeRegistry, Hot: hot})
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	watcher, err := epc.NewWatcher(cfg.Content.ThemesDir, resolver, logger)
	if err != nil {
		logger.WithError(err).Warn("theme watcher unavailable, continuing without hot reload")
	} else {
		if err := watcher.AddRecursive(cfg.Content.ThemesDir); err != nil {
			logger.WithError(err).Warn("failed to watch themes directory")
		}
		go watcher.Run(ctx)
		defer watcher.Close()
	}

	snippets := snippet.NewRegistry()
	validator := snippet.NewValidator(snippets)
	graph := ucg.New(durableStore, hot, validator)

	catalog := templates.NewCatalog(cfg.Locale.Default, logger)
	renderer := templates.NewRenderer(osFs, resolver, catalog)
	responseCache, err := templates.NewResponseCache(4096)
	if err != nil {
		return fmt.Errorf("build response cache: %w", err)
	}

	roles := rbac.NewRoleRegistry()
	registerDefaultRoles(roles)
	engine := rbac.NewEngine(roles)

	authCfg := &auth.Config{
		JWTSecret:         viper.GetString("auth.jwt_secret"),
		AccessTokenTTL:    cfg.Auth.AccessTTL,
		RefreshTokenTTL:   cfg.Auth.RefreshTTL,
		RefreshEnabled:    true,
		SessionTTL:        cfg.Auth.SessionTTL,
		Argon2:            auth.Argon2Params{Memory: cfg.Auth.Argon2Memory, Time: cfg.Auth.Argon2Time, Threads: 4, KeyLen: 32, SaltLen: 16},
		MaxFailedAttempts: 5,
		LockoutDuration:   30 * time.Minute,
		DefaultRole:       auth.RoleViewer,
		AvailableRoles:    []string{auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer, auth.RoleAgent},
		AuditEnabled:      true,
	}
	userStore := auth.NewGormUserStore(gormDB)
	sessionStore := auth.NewSessionStore(hot, cfg.Auth.SessionTTL)
	var oauthProvider *auth.OAuthProvider
	if authCfg.OAuth.ProviderURL != "" {
		oauthProvider, err = auth.NewOAuthProvider(ctx, authCfg.OAuth)
		if err != nil {
			logger.WithError(err).Warn("oauth provider unavailable, continuing with password/token auth only")
		}
	}
	authService := auth.NewAuthService(authCfg, userStore, sessionStore, oauthProvider, gormDB)

	pluginLogger := logger.WithField("component", "pluginhost")
	pluginBus := pluginhost.NewBus(256)
	pluginRegistry := pluginhost.NewRegistry(pluginLogger, gormDB)
	pluginAPI := pluginhost.API{}
	dispatcher := pluginhost.NewDispatcher(pluginRegistry, pluginhost.DefaultSandbox(), pluginAPI)
	asyncDispatcher := pluginhost.NewAsyncDispatcher(dispatcher, pluginLogger, 4)
	lifecycle := pluginhost.NewLifecycle(pluginRegistry, pluginhost.DefaultSandbox(), pluginAPI, pluginLogger)
	asyncDispatcher.Start()
	defer asyncDispatcher.Stop()

	if err := pluginRegistry.Load(osFs, "plugins"); err != nil {
		logger.WithError(err).Warn("plugin discovery failed, continuing with no plugins")
	} else if err := lifecycle.InitializeAll(ctx); err != nil {
		logger.WithError(err).Warn("plugin initialization reported errors")
	}
	pluginBus.Publish(pluginhost.Event{ID: "server.start", Type: "server.start", Source: "cli", Data: map[string]interface{}{"plugins": len(pluginRegistry.All())}})
	defer lifecycle.ShutdownAll(ctx)

	recoverer := csvrecovery.New(csvrecovery.Config{
		Durable:  durableStore,
		Hot:      hot,
		Graph:    graph,
		Themes:   themeRegistry,
		Snippets: snippets,
		Catalog:  catalog,
		Logger:   logger,
	})

	e := requestpipeline.New(requestpipeline.Dependencies{
		Config: cfg.Server,
		Negotiate: requestpipeline.NegotiationConfig{
			DefaultLocale:    cfg.Locale.Default,
			SupportedLocales: cfg.Locale.Supported,
			DefaultTheme:     cfg.Theme.Active,
		},
		Logger:   logger,
		Auth:     authService,
		Roles:    roles,
		Engine:   engine,
		Resolver: resolver,
		Renderer: renderer,
		Cache:    responseCache,
	})

	handlers := &api.Handlers{Auth: authService, Graph: graph, Snippets: snippets, Roles: roles}
	api.SetupRoutes(e, handlers, roles)
	api.SetupRecoveryRoutes(e, &api.RecoveryHandlers{Recoverer: recoverer, Fs: osFs, Dir: "."}, rbac.RequirePermission(roles, "recovery:run"))
	lifecycle.RegisterRoutes(e.Group("/plugins"))
	webassets.Register(e)
	e.GET("/assets/*", requestpipeline.AssetHandler(osFs, resolver))
	e.GET("/health", requestpipeline.HealthCheckHandlerWithDetails("reed", buildinfo.Get().Version, func() map[string]interface{} {
		return map[string]interface{}{"plugins": len(pluginRegistry.All())}
	}))

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server listening")
		if err := requestpipeline.StartServer(e, cfg.Server); err != nil {
			logger.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	return requestpipeline.GracefulShutdown(e, cfg.Server)
}

// registerDefaultRoles seeds the RoleRegistry with the core's four
// standard roles. Roles are registered only here, at startup; no API route
// adds or changes them at runtime.
func registerDefaultRoles(roles *rbac.RoleRegistry) {
	roles.Register(rbac.Role{Name: auth.RoleAdmin, Permissions: []string{"*", "recovery:run"}})
	roles.Register(rbac.Role{Name: auth.RoleEditor, Permissions: []string{"content:*", "snippet:read"}})
	roles.Register(rbac.Role{Name: auth.RoleViewer, Permissions: []string{"content:read", "snippet:read"}})
	roles.Register(rbac.Role{Name: auth.RoleAgent, Permissions: []string{"content:read", "content:create", "content:update"}})
}

func ttlClasses(overrides map[string]time.Duration) map[hotstore.Class]time.Duration {
	out := make(map[hotstore.Class]time.Duration, len(overrides))
	for class, d := range overrides {
		out[hotstore.Class(class)] = d
	}
	return out
}
