package cmd

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/cache"
	"github.com/vibast-solutions/ms-go-accounts/app/controller"
	"github.com/vibast-solutions/ms-go-accounts/app/credential"
	accountsgrpc "github.com/vibast-solutions/ms-go-accounts/app/grpc"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/app/twofactor"
	"github.com/vibast-solutions/ms-go-accounts/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start both HTTP (Echo) and gRPC servers for the accounts service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping redis")
	}

	sessions, err := newSessionService(cfg, db, redisClient)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build session service")
	}

	go startGRPCServer(cfg, sessions)

	startHTTPServer(cfg, sessions)
}

func newSessionService(cfg *config.Config, db *sql.DB, redisClient redis.UniversalClient) (service.SessionService, error) {
	passwords, err := credential.NewArgon2(credential.Params(cfg.Password.Hash))
	if err != nil {
		return nil, err
	}
	codeHasher, err := credential.NewArgon2(credential.Params(cfg.Password.CodeHash))
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	delivery, err := newDelivery(cfg)
	if err != nil {
		return nil, err
	}

	return service.NewSessionService(
		repository.NewAccountRepository(db),
		cache.NewChallengeCache(redisClient),
		passwords,
		twofactor.NewCodes(codeHasher),
		codec,
		delivery,
		cfg,
	), nil
}

// Outside production secrets are returned in responses so the flows can be
// exercised without a mail server.
func newDelivery(cfg *config.Config) (service.Delivery, error) {
	if !cfg.IsProduction() {
		logrus.Warn("Development delivery: tokens and codes are returned in responses")
		return service.NewDirectDelivery(), nil
	}

	smtp, err := mailer.NewSMTPMailer(cfg.Mailer)
	if err != nil {
		return nil, err
	}
	return service.NewNotifyDelivery(smtp), nil
}

func startHTTPServer(cfg *config.Config, sessions service.SessionService) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	corsConfig := echomiddleware.DefaultCORSConfig
	if cfg.Mailer.FrontEndURL != "" {
		// The refresh cookie only crosses origins with credentials allowed.
		corsConfig.AllowOrigins = []string{cfg.Mailer.FrontEndURL}
		corsConfig.AllowCredentials = true
	}
	e.Use(echomiddleware.CORSWithConfig(corsConfig))

	registerRoutes(e, controller.NewSessionController(sessions, cfg), middleware.NewAuthMiddleware(sessions))

	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func registerRoutes(e *echo.Echo, sessionController *controller.SessionController, authMiddleware *middleware.AuthMiddleware) {
	auth := e.Group("/auth")
	auth.POST("/register", sessionController.Register)
	auth.POST("/confirm", sessionController.Confirm)
	auth.POST("/confirmation/resend", sessionController.ResendConfirmation)
	auth.POST("/login", sessionController.Login)
	auth.POST("/login/confirm", sessionController.ConfirmLogin)
	auth.POST("/refresh", sessionController.Refresh)
	auth.POST("/password-reset/request", sessionController.RequestPasswordReset)
	auth.POST("/password-reset", sessionController.ResetPassword)

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.POST("/logout", sessionController.Logout)
	authProtected.POST("/change-password", sessionController.ChangePassword)
	authProtected.POST("/change-email", sessionController.ChangeEmail)
	authProtected.POST("/two-factor", sessionController.SetTwoFactor)
	authProtected.GET("/me", sessionController.Me)
	authProtected.DELETE("/account", sessionController.DeleteAccount)
}

func startGRPCServer(cfg *config.Config, sessions service.SessionService) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		accountsgrpc.LoggingUnaryInterceptor(),
		accountsgrpc.AccessTokenUnaryInterceptor(sessions, accountsgrpc.ValidateAccessTokenMethod),
	))
	defer grpcServer.GracefulStop()
	accountsgrpc.RegisterTokenServiceServer(grpcServer, accountsgrpc.NewTokenServer(sessions))

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	if err := grpcServer.Serve(lis); err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
}
