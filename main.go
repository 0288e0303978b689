package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fitSquadAPI/handlers"
	"fitSquadAPI/internal/logger"
	"fitSquadAPI/internal/notification"
	"fitSquadAPI/middleware"
	"fitSquadAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	groupService        *services.GroupService
	checkinService      *services.CheckinService
	gincanaService      *services.GincanaService
	notificationService *services.NotificationService
	mediaService        *services.MediaService
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found")
	}

	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		logger.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)

	if os.Getenv("CLERK_WEBHOOK_SECRET") == "" {
		logger.Warn("CLERK_WEBHOOK_SECRET is not set, webhooks will be rejected outside development")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		logger.Fatal("Failed to parse database URL: ", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Failed to create connection pool: ", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database: ", err)
	}

	logger.Info("Successfully connected to database")

	mediaService, err = services.NewMediaService(ctx)
	if err != nil {
		logger.Fatal("Failed to initialize media storage: ", err)
	}

	userService = services.NewUserService(dbPool)
	groupService = services.NewGroupService(dbPool)
	notificationService = services.NewNotificationService(dbPool)
	checkinService = services.NewCheckinService(dbPool, mediaService, groupService)
	gincanaService = services.NewGincanaService(dbPool, mediaService, groupService, checkinService, notificationService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		logger.Warnf("Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		logger.Info("FCM push provider initialized")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		logger.Info("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	groupHandler := handlers.NewGroupHandler(groupService)
	checkinHandler := handlers.NewCheckinHandler(checkinService)
	gincanaHandler := handlers.NewGincanaHandler(gincanaService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "fitSquad-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED API V1 ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/groups", groupHandler.CreateGroup).Methods("POST")
	protected.HandleFunc("/groups", groupHandler.GetUserGroups).Methods("GET")
	protected.HandleFunc("/groups/join", groupHandler.JoinGroup).Methods("POST")
	protected.HandleFunc("/groups/{groupID}/members", groupHandler.GetMembers).Methods("GET")
	protected.HandleFunc("/groups/{groupID}/invite-qr", groupHandler.GetInviteQR).Methods("GET")
	protected.HandleFunc("/groups/{groupID}/ranking", groupHandler.GetGroupRanking).Methods("GET")

	protected.HandleFunc("/groups/{groupID}/checkins", checkinHandler.AddCheckIn).Methods("POST")
	protected.HandleFunc("/groups/{groupID}/checkins", checkinHandler.GetGroupFeed).Methods("GET")

	protected.HandleFunc("/groups/{groupID}/gincana", gincanaHandler.CreateGincana).Methods("POST")
	protected.HandleFunc("/groups/{groupID}/gincana", gincanaHandler.GetActiveGincana).Methods("GET")
	protected.HandleFunc("/groups/{groupID}/gincana/finalize", gincanaHandler.FinalizeGincana).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Error starting server: ", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	logger.Info("Got signal: ", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}

	logger.Info("Server shutdown complete")
}
