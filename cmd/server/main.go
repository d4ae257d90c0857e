package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	attrepo "github.com/fieldpunch/attendance-backend/internal/attendance/repository"
	attservice "github.com/fieldpunch/attendance-backend/internal/attendance/service"
	"github.com/fieldpunch/attendance-backend/internal/faceservice"
	identityhandler "github.com/fieldpunch/attendance-backend/internal/identity/handler"
	identityrepo "github.com/fieldpunch/attendance-backend/internal/identity/repository"
	identityservice "github.com/fieldpunch/attendance-backend/internal/identity/service"
	"github.com/fieldpunch/attendance-backend/internal/imagestream"
	"github.com/fieldpunch/attendance-backend/internal/notify"
	"github.com/fieldpunch/attendance-backend/internal/objectstore"
	punchhandler "github.com/fieldpunch/attendance-backend/internal/punch/handler"
	punchservice "github.com/fieldpunch/attendance-backend/internal/punch/service"
	"github.com/fieldpunch/attendance-backend/internal/rbac"
	reportengine "github.com/fieldpunch/attendance-backend/internal/report/engine"
	reporthandler "github.com/fieldpunch/attendance-backend/internal/report/handler"
	"github.com/fieldpunch/attendance-backend/pkg/config"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
	"github.com/fieldpunch/attendance-backend/pkg/messaging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWithValidation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("attendance-backend", cfg.Server.Environment)
	log.Info().Msg("starting FieldPunch attendance backend")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, "fieldpunch.events", "attendance-backend", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	timezone, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Attendance.Timezone).Msg("invalid attendance timezone")
	}

	// Repositories
	userRepo := identityrepo.NewUserRepository(db)
	employeeRepo := identityrepo.NewEmployeeRepository(db)
	permRepo := identityrepo.NewPermissionRepository(db)
	locationRepo := identityrepo.NewLocationRepository(db)
	attendanceRepo := attrepo.NewAttendanceRepository(db)

	// RBAC
	tokenManager := rbac.NewTokenManager(&cfg.JWT)
	resolver := rbac.NewResolver(permRepo, redisClient, log)
	scopeResolver := rbac.NewScopeResolver(permRepo)
	chain := rbac.NewChain(tokenManager, resolver, scopeResolver, userRepo, log)

	// Object store: primary S3, secondary token-authenticated store, local fallback.
	var primaryStore objectstore.Store
	if cfg.ObjectStore.Bucket != "" {
		s3Store, err := objectstore.NewS3Store(context.Background(), cfg.ObjectStore)
		if err != nil {
			log.Error().Err(err).Msg("primary object store unavailable, falling back to secondary/local")
		} else {
			primaryStore = s3Store
		}
	}
	var secondaryStore objectstore.Store
	if cfg.ObjectStore.SecondaryBaseURL != "" {
		secondaryStore = objectstore.NewSecondaryStore(cfg.ObjectStore)
	}
	localStore := objectstore.NewLocalStore("./data/images")
	storeRouter := objectstore.NewRouter(primaryStore, secondaryStore, localStore)

	faceClient := faceservice.NewHTTPClient(cfg.FaceService)

	// Domain services
	attendanceService := attservice.NewService(attendanceRepo, timezone, cfg.Attendance.RolloverHour)
	punchPipeline := punchservice.New(employeeRepo, userRepo, attendanceService, faceClient, storeRouter, publisher, cfg.Attendance.FaceThreshold, log)
	authService := identityservice.NewAuthService(userRepo, resolver, scopeResolver, tokenManager)
	reportEngine := reportengine.New(db)
	gateway := notify.NewGateway(cfg.Gateway)

	// Handlers
	authHandler := identityhandler.NewAuthHandler(authService)
	locationHandler := identityhandler.NewLocationHandler(locationRepo)
	adminHandler := rbac.NewAdminHandler(permRepo, userRepo)
	punchHandler := punchhandler.NewHandler(attendanceService, punchPipeline, storeRouter)
	imageHandler := imagestream.NewHandler(attendanceRepo, storeRouter, log)
	reportHandler := reporthandler.NewHandler(reportEngine, db)
	notifyHandler := notify.NewHandler(gateway)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.FrontendOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "attendance-backend",
			"database": db.Health(r.Context()),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/supervisor-login", authHandler.SupervisorLogin)
		r.Post("/whatsapp/report", notifyHandler.ForwardReport)

		r.Group(func(r chi.Router) {
			r.Use(chain.Authenticate)

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(chain.AttachCityScope)

				r.With(chain.Authorize("permissions", "manage")).Get("/rbac/permissions", adminHandler.Permissions)
				r.With(chain.Authorize("permissions", "manage")).Get("/rbac/roles", adminHandler.Roles)
				r.With(chain.Authorize("permissions", "manage")).Get("/rbac/users", adminHandler.Users)

				r.With(chain.Authorize("city", "view"), chain.RequireCityScope(true)).Get("/cities", locationHandler.Cities)
				r.With(chain.Authorize("city", "view"), chain.RequireCityScope(true)).Get("/zones", locationHandler.Zones)
				r.With(chain.Authorize("city", "view"), chain.RequireCityScope(true)).Get("/wards", locationHandler.Wards)
				r.Get("/departments", locationHandler.Departments)
				r.Get("/designations", locationHandler.Designations)

				r.With(chain.Authorize("attendance", "view")).Post("/attendance", punchHandler.GetOrCreate)
				r.With(chain.Authorize("attendance", "report"), chain.RequireCityScope(true)).
					Get("/attendance/download", reportHandler.Download)
				r.With(chain.Authorize("attendance", "report"), chain.RequireCityScope(true)).
					Get("/attendance/short-report", reportHandler.ShortReport)
			})

			r.Route("/app/attendance/employee", func(r chi.Router) {
				r.Post("/", punchHandler.GetOrCreate)
				r.Put("/", punchHandler.Punch)
				r.Post("/face-attendance", punchHandler.FaceAttendance)
				r.Get("/image", imageHandler.ServeImage)
				r.Post("/faceRoutes/store-face", punchHandler.StoreFace)
				r.Delete("/faceRoutes/{empId}", punchHandler.RemoveFace)
			})
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
