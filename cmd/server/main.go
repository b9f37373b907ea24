package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Skotchmaster/book_market/internal/config"
	"github.com/Skotchmaster/book_market/internal/db"
	"github.com/Skotchmaster/book_market/internal/events"
	"github.com/Skotchmaster/book_market/internal/httpserver"
	"github.com/Skotchmaster/book_market/internal/logging"
	authmw "github.com/Skotchmaster/book_market/internal/middleware/auth"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/search"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/tokens"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(string(cfg.JWTSecret), "JWT_SECRET")
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	store := repo.New(gdb)
	tok := tokens.New(cfg.JWTSecret, cfg.JWTTTL)

	var index search.Index = search.NopIndex{}
	if cfg.SearchEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		es, err := search.NewESIndex(ctx, search.ESConfig{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		cancel()
		if err != nil {
			logger.Warn("search_index_unavailable", "reason", "falling back to database search", "error", err)
		} else {
			index = es
		}
	}

	items := &service.ItemService{Store: store, Index: index}
	accounts := &service.AccountService{Store: store, Items: items}
	listener := &service.SoldItemsListener{Items: items}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	var wg sync.WaitGroup
	var publisher events.Publisher
	var kafkaPublisher *events.KafkaPublisher
	var consumer *events.KafkaConsumer
	if cfg.KafkaEnabled() {
		kafkaPublisher = events.NewKafkaPublisher(events.NewWriter(cfg.KafkaBrokers, cfg.KafkaPurchaseTopic))
		publisher = kafkaPublisher

		reader := events.NewReader(cfg.KafkaBrokers, cfg.KafkaPurchaseTopic, cfg.KafkaGroupID)
		consumer = events.NewKafkaConsumer(reader, listener, logger.With("component", "purchase_consumer"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.RunWithRetry(logging.IntoContext(runCtx, logger), events.NewConsumerBackOff()); err != nil {
				logger.Error("purchase_consumer_stopped", "error", err)
			}
		}()
		logger.Info("purchase_events_via_kafka", "topic", cfg.KafkaPurchaseTopic, "group", cfg.KafkaGroupID)
	} else {
		publisher = events.NewDispatcher(logger, listener)
	}

	purchases := &service.PurchaseService{Store: store, Events: publisher}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		ctx := logging.IntoContext(context.Background(), logger)
		if _, err := accounts.EnsureAdmin(ctx, "Administrator", cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	e := httpserver.New(&httpserver.Deps{
		Logger: logger,
		Routes: authmw.DefaultRoutes(),
		Tokens: tok,
		Loader: store,
		Ready: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},

		AuthHandler:     &httpserver.AuthHTTP{Svc: &service.AuthService{Store: store, Tokens: tok}},
		AccountHandler:  &httpserver.AccountHTTP{Svc: accounts, Items: items},
		ItemHandler:     &httpserver.ItemHTTP{Svc: items},
		PurchaseHandler: &httpserver.PurchaseHTTP{Svc: purchases},
		AdminHandler:    &httpserver.AdminHTTP{Accounts: accounts, Purchases: purchases},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	stopRun()
	wg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("kafka_reader_close_error", "error", err)
		}
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka_writer_close_error", "error", err)
		}
	}

	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}
