package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/orgstack-io/orgstack/modules/platform/infrastructure/persistence"
	"github.com/orgstack-io/orgstack/modules/platform/presentation/controllers"
	"github.com/orgstack-io/orgstack/modules/platform/services"
	"github.com/orgstack-io/orgstack/pkg/composables"
	"github.com/orgstack-io/orgstack/pkg/configuration"
	"github.com/orgstack-io/orgstack/pkg/eventbus"
	"github.com/orgstack-io/orgstack/pkg/middleware"
	"github.com/orgstack-io/orgstack/pkg/tenantdb"
)

const routeRefreshInterval = time.Minute

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	registry := tenantdb.NewRegistry(conf.SystemName)
	loader := tenantdb.NewLoader(registry, logger)
	defer loader.Close()

	tenantRepo := persistence.NewTenantRepository()
	if err := refreshRoutes(ctx, pool, tenantRepo, loader); err != nil {
		logger.WithError(err).Error("initial tenant route load failed, serving from default store only")
	}

	connector := tenantdb.NewConnector(pool, registry, logger)

	bus := eventbus.NewEventPublisher(logger)
	orgRepo := persistence.NewOrgRepository()
	roleRepo := persistence.NewRoleRepository()
	grantRepo := persistence.NewAuthorizationRepository()

	hierarchy := services.NewOrgHierarchyService(orgRepo)
	roleSvc := services.NewRoleService(roleRepo, orgRepo, hierarchy, bus)
	authSvc := services.NewAuthorizationService(grantRepo, roleRepo, orgRepo, hierarchy, bus)

	router := mux.NewRouter()
	router.Use(
		middleware.WithLogger(logger),
		middleware.WithTenantStore(connector, conf.TenantIDHeader),
	)
	controllers.NewPlatformAPIController(conf.SystemName, roleSvc, authSvc).Register(router)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go refreshLoop(refreshCtx, pool, tenantRepo, loader, logger)

	srv := &http.Server{
		Addr:              conf.SocketAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", conf.SocketAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
	}
	configuration.Use().Unload()
}

// refreshRoutes reads active tenants from the default store and points the
// registry at their dedicated stores.
func refreshRoutes(ctx context.Context, pool *pgxpool.Pool, repo *persistence.TenantRepository, loader *tenantdb.Loader) error {
	tenants, err := repo.GetActive(composables.WithPool(ctx, pool))
	if err != nil {
		return err
	}

	routes := make([]tenantdb.Route, 0, len(tenants))
	for _, t := range tenants {
		if !t.HasDedicatedStore() {
			continue
		}
		routes = append(routes, tenantdb.Route{TenantID: t.ID(), DSN: t.DSN()})
	}
	return loader.Refresh(ctx, routes)
}

func refreshLoop(ctx context.Context, pool *pgxpool.Pool, repo *persistence.TenantRepository, loader *tenantdb.Loader, logger *logrus.Logger) {
	ticker := time.NewTicker(routeRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refreshRoutes(ctx, pool, repo, loader); err != nil {
				logger.WithError(err).Warn("tenant route refresh failed, keeping previous snapshot")
			}
		}
	}
}
