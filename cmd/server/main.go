package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/audience"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/automation"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/campaign"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/config"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/mail"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/repository/postgres"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/template"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database url is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Repositories
	deals := postgres.NewDealRepo(db)
	rules := postgres.NewRuleRepo(db)
	activities := postgres.NewActivityRepo(db)
	campaigns := postgres.NewCampaignRepo(db)
	sends := postgres.NewSendRepo(db)
	connections := postgres.NewConnectionRepo(db)

	// Mail transports
	var provider mail.Transport
	switch cfg.Provider.Name {
	case "ses":
		provider = mail.NewSESTransport(cfg.Provider.SES.AccessKey, cfg.Provider.SES.SecretKey, cfg.Provider.SES.Region)
	default:
		provider = mail.NewProviderTransport(cfg.Provider.SparkPost.APIKey, cfg.Provider.SparkPost.BaseURL)
	}
	mailbox := mail.NewMailboxTransport(connections, cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.Tenant)
	adapter := mail.NewAdapter(mailbox, provider)

	// Services
	templates := template.NewEngine()
	resolver := audience.NewResolver(deals)
	executor := campaign.NewExecutor(campaigns, sends, activities, resolver, adapter, templates, cfg.Tracking.BaseURL)
	engine := automation.NewEngine(rules, deals, activities, executor, adapter, templates)
	bus := automation.NewBus(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Automation.Enabled {
		consumer := automation.NewConsumer(rdb, engine)
		go consumer.Run(ctx)
	}

	// Tracking event consumer shares the server process so open/click
	// timestamps land in the same database the executor writes.
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Tracking.Region))
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		trackingConsumer := tracking.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL, db)
		trackingConsumer.Start(ctx)
		defer trackingConsumer.Stop()
	}

	router := newRouter(executor, bus, db, rdb)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-done
	log.Println("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("server stopped")
}

func newRouter(executor *campaign.Executor, bus *automation.Bus, db *sql.DB, rdb *redis.Client) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
		code := http.StatusOK
		if err := db.PingContext(req.Context()); err != nil {
			status["status"], status["database"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(req.Context()).Err(); err != nil {
			status["status"], status["redis"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	r.Post("/api/campaigns/{id}/execute", func(w http.ResponseWriter, req *http.Request) {
		result, err := executor.Execute(req.Context(), chi.URLParam(req, "id"))
		switch {
		case errors.Is(err, campaign.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, campaign.ErrNoRecipients), errors.Is(err, campaign.ErrAlreadySent):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, result)
		}
	})

	r.Post("/api/triggers", func(w http.ResponseWriter, req *http.Request) {
		var event automation.TriggerEvent
		if err := json.NewDecoder(req.Body).Decode(&event); err != nil || event.Trigger == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trigger event"})
			return
		}
		// Accepted, not processed: the consumer picks it up off the bus.
		bus.Publish(event.Trigger, &event.Context)
		w.WriteHeader(http.StatusAccepted)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
