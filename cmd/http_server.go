package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/activity"
	activitypg "github.com/ancestrio/family-archive/internal/activity/postgres"
	"github.com/ancestrio/family-archive/internal/auth"
	authpg "github.com/ancestrio/family-archive/internal/auth/postgres"
	"github.com/ancestrio/family-archive/internal/book"
	bookpg "github.com/ancestrio/family-archive/internal/book/postgres"
	"github.com/ancestrio/family-archive/internal/filestore"
	"github.com/ancestrio/family-archive/internal/gallery"
	gallerypg "github.com/ancestrio/family-archive/internal/gallery/postgres"
	"github.com/ancestrio/family-archive/internal/storage"
	"github.com/ancestrio/family-archive/internal/transport/rest"
	"github.com/ancestrio/family-archive/internal/tree"
	treepg "github.com/ancestrio/family-archive/internal/tree/postgres"
	"github.com/ancestrio/family-archive/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// gorm repositories share the sqlx pool
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	guard := storage.NewGuard(storage.NewBreaker(config.Database.UnavailableCooldown, nil), log)
	files := filestore.New(config.Storage.PublicDir, config.Storage.PrivateDir, log)

	var recorder activity.Recorder = activitypg.NewRecorder(db, log)

	tokens := auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.AccessTokenTTL)
	authService := auth.NewService(authpg.NewRepository(gormDB), tokens, guard, log, config.Security.BCryptCost)
	authHandler := auth.NewHandler(authService)

	bookService := book.NewService(bookpg.NewRepository(gormDB), files, guard, recorder, log)
	galleryService := gallery.NewService(gallerypg.NewRepository(gormDB), files, guard, recorder, log)
	treeService := tree.NewService(treepg.NewRepository(gormDB), files, guard, recorder, log)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.RouterDeps{
		DB:             db.DB,
		AuthHandler:    authHandler,
		BookHandler:    book.NewHandler(bookService),
		GalleryHandler: gallery.NewHandler(galleryService),
		TreeHandler:    tree.NewHandler(treeService),
		AllowedOrigins: config.Server.AllowedOrigins,
		PublicDir:      config.Storage.PublicDir,
		MaxUploadSize:  config.Storage.MaxUploadSize,
		Logger:         log,
	})

	return &Dependencies{
		Config: config,
		DB:     db,
		Router: router,
		Logger: log,
	}, nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
