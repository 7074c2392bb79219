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

	"github.com/sems/expense-service/internal"
	"github.com/sems/expense-service/internal/core/events"
	"github.com/sems/expense-service/internal/expense"
	expensepg "github.com/sems/expense-service/internal/expense/postgres"
	"github.com/sems/expense-service/internal/transport/rest"
	"github.com/sems/expense-service/internal/userdirectory"
	"github.com/sems/expense-service/internal/workflow"
	workflowpg "github.com/sems/expense-service/internal/workflow/postgres"
	"github.com/sems/expense-service/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
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
	Config          *internal.Config
	DB              *sqlx.DB
	GormDB          *gorm.DB
	Router          *chi.Mux
	ExpenseHandler  *expense.Handler
	WorkflowHandler *workflow.Handler
	EventBus        *events.EventBus
	Logger          *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	registerNotificationHandlers(deps.EventBus, deps.Logger)

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.ExpenseHandler,
		deps.WorkflowHandler,
		deps.Config.Security.JWTSecret,
		deps.Logger,
	)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

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
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over db connection: %w", err)
	}

	eventBus := events.NewEventBus(lg)

	expenseRepo := expensepg.NewExpenseRepository(gormDB)
	levelRepo := workflowpg.NewLevelRepository(gormDB)
	stepRepo := workflowpg.NewStepRepository(gormDB)
	directory := userdirectory.NewClient(config.UserDirectory.BaseURL, config.UserDirectory.Timeout, lg)

	threshold, err := config.Workflow.Threshold()
	if err != nil {
		return nil, fmt.Errorf("invalid auto approval threshold: %w", err)
	}

	expenseService := expense.NewService(expenseRepo, lg)
	engine := workflow.NewService(expenseRepo, levelRepo, stepRepo, directory, eventBus, threshold, lg)

	return &Dependencies{
		Config:          config,
		DB:              db,
		GormDB:          gormDB,
		Router:          chi.NewRouter(),
		ExpenseHandler:  expense.NewHandler(expenseService),
		WorkflowHandler: workflow.NewHandler(engine),
		EventBus:        eventBus,
		Logger:          lg,
	}, nil
}

// registerNotificationHandlers attaches the notification side of workflow
// transitions. Delivery here is just structured logs; a real notifier would
// subscribe the same way.
func registerNotificationHandlers(bus *events.EventBus, lg *slog.Logger) {
	logEvent := func(message string) events.Handler {
		return func(ctx context.Context, event events.Event) error {
			lg.Info(message,
				"event_id", event.EventID(),
				"payload", event.Payload())
			return nil
		}
	}

	bus.Subscribe(events.EventTypeExpenseSubmitted, logEvent("notify: expense submitted"))
	bus.Subscribe(events.EventTypeExpenseApproved, logEvent("notify: expense approved"))
	bus.Subscribe(events.EventTypeExpenseAutoApproved, logEvent("notify: expense auto-approved"))
	bus.Subscribe(events.EventTypeExpenseRejected, logEvent("notify: expense rejected"))
	bus.Subscribe(events.EventTypeExpenseChangesRequested, logEvent("notify: changes requested"))
	bus.Subscribe(events.EventTypeExpenseEscalated, logEvent("notify: expense escalated"))
	bus.Subscribe(events.EventTypeExpensePaid, logEvent("notify: expense paid"))
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
