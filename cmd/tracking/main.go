package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/config"
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
	if cfg.Tracking.QueueURL == "" {
		log.Fatal("tracking queue_url is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Tracking.Region))
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	pub := tracking.NewPublisher(sqsClient, cfg.Tracking.QueueURL)
	handler := tracking.NewHandler(pub)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Tracking.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on :%d", cfg.Tracking.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
