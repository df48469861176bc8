package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/config"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/repository"
	"github.com/mamadbah2/mandi/internal/repository/cache"
	"github.com/mamadbah2/mandi/internal/repository/memory"
	"github.com/mamadbah2/mandi/internal/repository/mongodb"
	"github.com/mamadbah2/mandi/internal/repository/sheets"
	"github.com/mamadbah2/mandi/internal/scheduler"
	"github.com/mamadbah2/mandi/internal/server/handlers"
	"github.com/mamadbah2/mandi/internal/server/router"
	billingsvc "github.com/mamadbah2/mandi/internal/service/billing"
	lotsvc "github.com/mamadbah2/mandi/internal/service/lots"
	whatsappsvc "github.com/mamadbah2/mandi/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/mandi/pkg/clients/whatsapp"
	"github.com/mamadbah2/mandi/pkg/logger"
)

type storage interface {
	repository.LotRepository
	repository.SettlementRepository
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)
	metrics.Init()

	ctx := context.Background()

	var store storage
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			baseLogger.Fatal("failed to create mongodb indexes", zap.Error(err))
		}
		store = mongoRepo
	} else {
		baseLogger.Warn("MONGODB_URI not set, lots are kept in memory")
		store = memory.NewStore()
	}

	var reportCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			baseLogger.Fatal("failed to init redis cache", zap.Error(err))
		}
		defer func() { _ = redisCache.Close() }()
		reportCache = redisCache
	} else {
		reportCache = cache.NewMemoryCache()
	}

	sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
	if err != nil {
		baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
	}

	var whatsClient whatsappclient.Client
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(whatsappclient.Config{
			AccessToken:   cfg.WhatsApp.AccessToken,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			BaseURL:       cfg.WhatsApp.BaseURL,
			APIVersion:    cfg.WhatsApp.APIVersion,
			CountryCode:   cfg.WhatsApp.CountryCode,
		})
	} else {
		baseLogger.Warn("whatsapp credentials missing, notifications disabled")
	}
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, baseLogger.Named("svc.whatsapp"))

	loc, err := time.LoadLocation(cfg.Settlement.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}
	rates := settlement.Rates{Farmer: cfg.Commission.FarmerRate, Trader: cfg.Commission.TraderRate}

	lotSvc := lotsvc.NewService(store, reportCache, messagingSvc, rates, baseLogger.Named("svc.lots"))
	billingSvc := billingsvc.NewService(store, store, reportCache, sheetsRepo, rates, billingsvc.Options{
		CacheTTL:   cfg.Redis.BillingTTL,
		SheetRange: cfg.Sheets.BillingRange,
		Location:   loc,
	}, baseLogger.Named("svc.billing"))

	engine := router.New(router.Handlers{
		Records:  handlers.NewRecordsHandler(lotSvc, loc, baseLogger.Named("handlers.records")),
		Finance:  handlers.NewFinanceHandler(lotSvc, billingSvc, baseLogger.Named("handlers.finance")),
		Messages: handlers.NewMessageHandler(messagingSvc, baseLogger.Named("handlers.messages")),
	}, []byte(cfg.Auth.JWTSecret), baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Settlement, billingSvc, messagingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	lotSvc.Wait()
}
