package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/api"
	"github.com/dom/cardclash/internal/config"
	"github.com/dom/cardclash/internal/realtime"
	"github.com/dom/cardclash/internal/repository"
	repoPostgres "github.com/dom/cardclash/internal/repository/postgres"
	"github.com/dom/cardclash/internal/resolution"
	"github.com/dom/cardclash/internal/scheduler"
	"github.com/dom/cardclash/internal/service"
	"github.com/dom/cardclash/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const templateDB = "cardclash_template"

// pg is the postgres container shared by every test in one test binary.
// Each test gets its own database cloned from a migrated template, so tests
// in a package never see each other's rows.
var pg struct {
	once    sync.Once
	err     error
	baseDSN string
	admin   *gorm.DB
	seq     atomic.Int64
}

func startPostgres() {
	ctx := context.Background()
	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("postgres"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		pg.err = fmt.Errorf("start postgres container: %w", err)
		return
	}

	if pg.baseDSN, err = container.ConnectionString(ctx, "sslmode=disable"); err != nil {
		pg.err = fmt.Errorf("connection string: %w", err)
		return
	}
	if pg.admin, err = openGorm(pg.baseDSN); err != nil {
		pg.err = err
		return
	}
	if err := pg.admin.Exec("CREATE DATABASE " + templateDB).Error; err != nil {
		pg.err = fmt.Errorf("create template: %w", err)
		return
	}

	tmpl, err := openGorm(withDatabase(pg.baseDSN, templateDB))
	if err != nil {
		pg.err = err
		return
	}
	if err := repoPostgres.Migrate(tmpl); err != nil {
		pg.err = fmt.Errorf("migrate template: %w", err)
	}
	// CREATE DATABASE ... TEMPLATE refuses templates with open connections.
	if sqlDB, err := tmpl.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dsn, err)
	}
	return db, nil
}

func withDatabase(dsn, name string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	u.Path = "/" + name
	return u.String()
}

// TestDB is one migrated database private to a single test.
type TestDB struct {
	Name string
	DB   *gorm.DB
	DSN  string
}

// NewTestDB clones the migrated template into a fresh database and drops it
// when the test ends. The container is started on first use.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}

	pg.once.Do(startPostgres)
	if pg.err != nil {
		t.Fatalf("postgres unavailable: %v", pg.err)
	}

	name := fmt.Sprintf("test_%d_%d", os.Getpid(), pg.seq.Add(1))
	if err := pg.admin.Exec(fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", name, templateDB)).Error; err != nil {
		t.Fatalf("failed to create database %s: %v", name, err)
	}

	dsn := withDatabase(pg.baseDSN, name)
	db, err := openGorm(dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if err := pg.admin.Exec("DROP DATABASE IF EXISTS " + name + " WITH (FORCE)").Error; err != nil {
			t.Logf("drop %s: %v", name, err)
		}
	})

	return &TestDB{Name: name, DB: db, DSN: dsn}
}

// TestConfig is a postgres-backed config with a short reveal countdown.
func TestConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Environment:          "test",
		StorageDriver:        "postgres",
		JWTSecret:            "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours:   1,
		LogLevel:             "error",
		LogFormat:            "console",
		RevealCountdown:      2 * time.Second,
		ChallengeTTL:         time.Minute,
		SweepInterval:        time.Minute,
		StuckResolutionAfter: 30 * time.Second,
		ResolutionPolicy:     resolution.PolicyAttributeSum,
		PackSize:             5,
	}
}

// TestServer is the full stack behind an httptest server.
type TestServer struct {
	Server    *httptest.Server
	DB        *TestDB
	Repos     *repository.Repositories
	Services  *service.Services
	Broker    *realtime.Broker
	Scheduler *scheduler.Scheduler
	Hub       *websocket.Hub
	Config    *config.Config
}

// NewTestServer wires repositories, services, scheduler and hub the way
// cmd/server does, over a private database.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()
	log := zap.NewNop()

	repos := repoPostgres.NewRepositories(testDB.DB)
	broker := realtime.NewBroker(log)
	notifier := realtime.NewNotifier(broker, log)

	policy, err := resolution.ByName(cfg.ResolutionPolicy)
	if err != nil {
		t.Fatalf("failed to select resolution policy: %v", err)
	}
	services := service.NewServices(repos, cfg, notifier, policy, log)

	sched, err := scheduler.New(repos.Battle, services.Orchestrator, services.Battle, services.Selection, scheduler.Options{
		RevealCountdown:      cfg.RevealCountdown,
		ChallengeTTL:         cfg.ChallengeTTL,
		SweepInterval:        cfg.SweepInterval,
		StuckResolutionAfter: cfg.StuckResolutionAfter,
	}, log)
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	services.Selection.SetRevealScheduler(sched)
	if err := sched.Start(); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	hub := websocket.NewHub(broker, websocket.Services{
		Battles:    services.Battle,
		Selection:  services.Selection,
		Resolution: services.Orchestrator,
	}, log)
	go hub.Run()

	router := api.NewRouter(services, hub, log)
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:    server,
		DB:        testDB,
		Repos:     repos,
		Services:  services,
		Broker:    broker,
		Scheduler: sched,
		Hub:       hub,
		Config:    cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
		sched.Shutdown()
	})

	return ts
}

// APIURL joins path onto the server's /api/v1 prefix.
func (ts *TestServer) APIURL(path string) string {
	return ts.Server.URL + "/api/v1" + path
}

// WebSocketURL is the upgrade endpoint with the token in the query string.
func (ts *TestServer) WebSocketURL(token string) string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/api/v1/ws?token=" + url.QueryEscape(token)
}
