package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/cache"
	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/handler"
	"github.com/haatos/simple-cd/internal/logging"
	"github.com/haatos/simple-cd/internal/security"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
)

func main() {
	if err := settings.ReadDotenv(internal.DotEnvPath); err != nil {
		logging.L().Fatal("reading dotenv", zap.Error(err))
	}
	settings.Settings = settings.NewSettings()
	logger := logging.Init(settings.Settings.LogPath, settings.Settings.LogLevel)
	defer logger.Sync()

	if err := internal.InitializeConfiguration(internal.ConfigJSONPath); err != nil {
		logger.Fatal("reading configuration", zap.Error(err))
	}
	settings.Settings.SessionExpires = internal.Config.SessionExpiresHours.Duration()

	hashKey, blockKey, err := security.NewKeys(internal.DotEnvPath)
	if err != nil {
		logger.Fatal("reading cookie keys", zap.Error(err))
	}

	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	if err := store.RunMigrations(rwdb, store.Dialect()); err != nil {
		logger.Fatal("running migrations", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	goCache := cache.NewGoCache(internal.Config.CacheCapacity, cache.NewMetrics(registry), logger)

	dao, err := newConfigDao(hashKey, logger)
	if err != nil {
		logger.Fatal("opening configuration", zap.Error(err))
	}

	userStore := store.NewUserSQLiteStore(rdb, rwdb)
	agentStore := store.NewAgentSQLiteStore(rdb, rwdb)
	accessTokenStore := store.NewAccessTokenSQLiteStore(rdb, rwdb)
	jobStore := store.NewJobInstanceSQLiteStore(rdb, rwdb, goCache, logger)
	stageStore := store.NewStageSQLiteStore(rdb, rwdb, goCache, jobStore, logger)
	pipelineStore := store.NewPipelineSQLiteStore(rdb, rwdb, goCache, stageStore, logger)
	if err := pipelineStore.Initialize(context.Background()); err != nil {
		logger.Fatal("warming pipeline cache", zap.Error(err))
	}

	uuidGen := service.NewUUIDGen()
	cookieSvc := service.NewCookieService(
		hashKey, blockKey, settings.Settings.Domain, settings.Settings.SessionExpires,
	)
	userSvc := service.NewUserService(userStore, logger)
	agentSvc := service.NewAgentService(agentStore, uuidGen, logger)
	accessTokenSvc := service.NewAccessTokenService(accessTokenStore, uuidGen)
	historySvc := service.NewHistoryService(
		store.NewTxManager(rwdb), pipelineStore, stageStore, jobStore, logger,
	)

	updater := service.NewConfigUpdater(dao, logger)
	pipelineConfigSvc := service.NewPipelineConfigService(updater)
	environmentSvc := service.NewEnvironmentConfigService(updater)
	securityAdminsSvc := service.NewSecurityAdminsService(updater)

	if err := userSvc.InitializeSuperuser(context.Background(), os.Stdin, os.Stdout); err != nil {
		logger.Fatal("initializing superuser", zap.Error(err))
	}

	scheduler, err := service.NewScheduler(
		logger,
		service.ScheduledFunc(func(s gocron.Scheduler) error {
			return dao.ScheduleReload(s, internal.Config.ReloadInterval())
		}),
		service.ScheduledFunc(func(s gocron.Scheduler) error {
			return userStore.ScheduleDailyCleanUp(s, logger)
		}),
	)
	if err != nil {
		logger.Fatal("creating scheduler", zap.Error(err))
	}
	defer scheduler.Shutdown()
	scheduler.Start()

	authH := handler.NewAuthHandler(userSvc, cookieSvc, accessTokenSvc, logger)

	e := setupEcho(logger, registry)
	g := e.Group("", authH.SessionMiddleware)
	admin := []echo.MiddlewareFunc{handler.IsAuthenticated, handler.RoleMiddleware(store.Admin)}
	authenticated := g.Group("", handler.IsAuthenticated)

	handler.SetupAuthRoutes(g, authH)
	handler.SetupUserRoutes(g, handler.NewUserHandler(userSvc, cookieSvc))
	handler.SetupAccessTokenRoutes(g, handler.NewAccessTokenHandler(accessTokenSvc))
	handler.SetupAgentRoutes(g, agentSvc, admin...)
	handler.SetupHistoryRoutes(
		authenticated,
		handler.NewHistoryHandler(historySvc, int(internal.Config.HistoryPageSize)),
		handler.RoleMiddleware(store.Operator),
	)
	handler.SetupRevisionRoutes(g, handler.NewRevisionHandler(dao.Versions()), admin...)

	// Authorization of config edits happens in the update commands.
	handler.SetupPipelineConfigRoutes(authenticated, pipelineConfigSvc)
	handler.SetupEnvironmentRoutes(authenticated, environmentSvc)
	handler.SetupSecurityAdminsRoutes(authenticated, securityAdminsSvc)
	handler.SetupPackageRoutes(authenticated, service.NewPackageDefinitionService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/admin/pipeline_groups", service.NewPipelineGroupService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/admin/security/roles", service.NewRoleConfigService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/elastic/profiles", service.NewElasticProfileService(updater))
	handler.SetupEntityRoutes(
		authenticated, "/api/admin/elastic/cluster_profiles", service.NewClusterProfileService(updater),
	)
	handler.SetupEntityRoutes(authenticated, "/api/admin/artifact_stores", service.NewArtifactStoreService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/admin/templates", service.NewTemplateConfigService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/admin/repositories", service.NewPackageRepositoryService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/admin/scms", service.NewSCMService(updater))
	handler.SetupEntityRoutes(authenticated, "/api/admin/config_repos", service.NewConfigRepoService(updater))

	internal.GracefulShutdown(e, settings.Settings.Port)
}

func newConfigDao(encryptionKey []byte, logger *zap.Logger) (*configstore.GoConfigDao, error) {
	configFile, err := filepath.Abs(settings.Settings.ConfigFile)
	if err != nil {
		return nil, err
	}
	ds := configstore.NewFileDataSource(
		osfs.New(filepath.Dir(configFile)), filepath.Base(configFile), logger,
	)
	versions, err := configstore.OpenVersionRepository(settings.Settings.ConfigRepoDir, logger)
	if err != nil {
		return nil, err
	}
	dao := configstore.NewGoConfigDao(ds, versions, security.NewAESEncrypter(encryptionKey), logger)
	dao.RegisterListener(configstore.ConfigChangedFunc(func(c *cruise.CruiseConfig) {
		logger.Info(
			"configuration changed",
			zap.String("md5", c.MD5),
			zap.Int("groups", len(c.Groups)),
			zap.Int("environments", len(c.Environments)),
		)
	}))
	if err := dao.LoadConfig(); err != nil {
		return nil, err
	}
	return dao, nil
}

func setupEcho(logger *zap.Logger, registry *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.Use(
		middleware.Recover(),
		middleware.RequestLoggerWithConfig(internal.GetRequestLoggerConfig(logger)),
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig(internal.Config.RateLimitPerSecond)),
	)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	return e
}
