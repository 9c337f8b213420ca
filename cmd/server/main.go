package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"patapesa/internal/config"
	"patapesa/internal/handler"
	"patapesa/internal/middleware"
	"patapesa/internal/ratelimit"
	"patapesa/internal/repository"
	"patapesa/internal/service"
	"patapesa/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found or error loading, relying on environment variables")
	}

	if err := run(logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Configuration ---
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		return err
	}

	// --- Database Connection ---
	dbPool, err := config.ConnectDB(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if err := config.AutoMigrate(ctx, dbPool); err != nil {
		return err
	}

	// --- Login limiter (optional) ---
	var limiter service.LoginLimiter
	if len(appCfg.RedisAddrs) > 0 {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    appCfg.RedisAddrs,
			Password: appCfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, login limiting disabled", zap.Error(err))
		} else {
			limiter = ratelimit.NewLimiter(rdb, appCfg.LoginMaxAttempts, appCfg.LoginWindow)
		}
	}

	jwtUtil := utils.NewJWTUtil(appCfg.JWTSecret, appCfg.JWTExpirationHours)

	// --- Repositories, services, handlers ---
	userRepo := repository.NewUserRepository(dbPool)
	ledgerRepo := repository.NewLedgerRepository(dbPool)

	userService := service.NewUserService(userRepo, jwtUtil, limiter, appCfg.InitialAdminPhone, logger)
	ledgerService := service.NewLedgerService(ledgerRepo)
	paymentService := service.NewPaymentService(userRepo, ledgerRepo, logger)

	userHandler := handler.NewUserHandler(userService, logger)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	healthHandler := handler.NewHealthHandler(dbPool)

	// --- Router ---
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggerMiddleware(logger), middleware.MetricsMiddleware(), middleware.CORSMiddleware())

	jwtAuthMW := middleware.JWTAuthMiddleware(jwtUtil)
	adminRoleMW := middleware.AdminMiddleware()
	userRoleMW := middleware.UserMiddleware()

	// The mobile app talks to the root paths.
	healthHandler.RegisterHealthRoutes(router)
	userHandler.RegisterUserRoutes(router, jwtAuthMW, userRoleMW, adminRoleMW)
	ledgerHandler.RegisterLedgerRoutes(router, jwtAuthMW, userRoleMW, adminRoleMW)
	paymentHandler.RegisterPaymentRoutes(router, jwtAuthMW, userRoleMW)

	srv := &http.Server{
		Addr:              ":" + appCfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", zap.String("port", appCfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
