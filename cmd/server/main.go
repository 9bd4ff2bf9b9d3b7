package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/bekzatkhan/supply-accountability/internal/accountability"
	"github.com/bekzatkhan/supply-accountability/internal/config"
	"github.com/bekzatkhan/supply-accountability/internal/custody"
	"github.com/bekzatkhan/supply-accountability/internal/database"
	"github.com/bekzatkhan/supply-accountability/internal/docgen"
	"github.com/bekzatkhan/supply-accountability/internal/handler"
	"github.com/bekzatkhan/supply-accountability/internal/ledger"
	"github.com/bekzatkhan/supply-accountability/internal/middleware"
	"github.com/bekzatkhan/supply-accountability/internal/queue"
	"github.com/bekzatkhan/supply-accountability/internal/repository"
	"github.com/bekzatkhan/supply-accountability/internal/router"
	queue_publisher "github.com/bekzatkhan/supply-accountability/internal/service"
)

func main() {
	// Load .env when present; real deployments set the environment
	// directly and the file is absent.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	equipment := repository.NewEquipmentRepo(db)
	receipts := repository.NewReceiptRepo(db)
	sessions := repository.NewSessionRepo(db)

	// Domain services.
	ledgerSvc := ledger.New(equipment)
	custodySvc := custody.New(receipts, equipment, docgen.NewKeyGenerator())

	hub := accountability.NewHub()
	propagator := queue_publisher.NewPropagator(hub)
	engine := accountability.NewEngine(sessions, equipment, propagator)

	// Background consumer writes the broker-side audit trail. It
	// reconnects on its own; a fatal setup error only disables the
	// trail, not the API.
	go func() {
		if err := queue.StartItemConsumer(); err != nil {
			log.Printf("item consumer stopped: %v", err)
		}
	}()

	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	// Handlers.
	authH := handler.NewAuthHandler(cfg, users, tokens)
	connH := handler.NewConnectivityHandler(db, rdb)
	equipH := handler.NewEquipmentHandler(equipment, ledgerSvc, rdb, cacheCfg.Prefix)
	receiptH := handler.NewReceiptHandler(custodySvc, rdb, cacheCfg.Prefix)
	sessionH := handler.NewSessionHandler(engine, rdb, cacheCfg.Prefix)
	verifyH := handler.NewVerificationHandler(engine, rdb, cacheCfg.Prefix)
	eventsH := handler.NewEventsHandler(hub)

	e := echo.New()
	rateLimit := middleware.NewTokenBucket(rateCfg, rdb)
	respCache := middleware.NewRedisCache(cacheCfg, rdb)

	router.RegisterRoutes(e, connH)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterAuthority(e, equipH, receiptH, sessionH, cfg.JWTSecret, rateLimit, respCache)
	// No response cache on holder routes: /v1/events is a websocket
	// upgrade and verification submissions must never be replayed.
	router.RegisterHolder(e, receiptH, verifyH, eventsH, cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
