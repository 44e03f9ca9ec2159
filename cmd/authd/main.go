package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env", ".env", "path to a dotenv file")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := loadAppConfig(configPath, os.LookupEnv)
	if err != nil {
		return err
	}

	zlog, err := newZapLogger(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	logger := auth.NewZapLogger(zlog)
	logger.Info("starting authd", "config", print.MaybePrettyJSON(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := auth.OpenDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := auth.NewPersistenceClient(cfg.Database, db)
	if err != nil {
		return err
	}
	if err := auth.RunMigrations(ctx, client); err != nil {
		return err
	}

	repos := auth.NewRepositoryManager(client.DB(), auth.WithPersistenceConfig(cfg.Database))
	repos.MustValidate()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := auth.NewMetricsSink(provider.Meter("github.com/goliatone/go-auth-gate"))
	if err != nil {
		return err
	}

	auther, err := auth.NewAuthenticator(repos.Users(), cfg.Auth)
	if err != nil {
		return err
	}
	auther.WithLogger(logger).WithActivitySink(metrics)

	controller := auth.NewAuthController(auther, repos.Users(),
		auth.WithControllerLogger(logger),
		auth.WithControllerDebug(cfg.Debug),
	)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			BodyLimit:             1 << 20,
			ReadTimeout:           10 * time.Second,
			DisableStartupMessage: true,
		}))
		app.Use(recover.New())
		app.Use(requestid.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.HTTP.CORSOrigins, ","),
			AllowMethods: "GET,POST,PATCH,OPTIONS",
			AllowHeaders: "Authorization,Content-Type",
			MaxAge:       300,
		}))
		return app
	})

	r := srv.Router()
	r.Get("/healthz", func(ctx router.Context) error {
		return ctx.SendString("ok")
	}).SetName("healthz.get")
	r.Get("/admin/metrics", metricsHandler(reader, logger),
		auther.RequireAnyRole(auth.RoleAdmin).Middleware(auth.WithMiddlewareLogger(logger)),
	).SetName("admin-metrics.get")
	auth.RegisterAuthRoutes(r, controller)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("authd listening", "addr", cfg.HTTP.Addr)
		return srv.Serve(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("authd shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newZapLogger(level string, debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = lvl

	return zcfg.Build()
}

func metricsHandler(reader *sdkmetric.ManualReader, logger auth.Logger) router.HandlerFunc {
	return func(ctx router.Context) error {
		counts, err := collectEventCounts(ctx.Context(), reader)
		if err != nil {
			return auth.WriteError(ctx, err, logger)
		}
		return ctx.JSON(http.StatusOK, counts)
	}
}
