// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"devlink/internal/cache"
	"devlink/internal/config"
	"devlink/internal/middleware"
	"devlink/internal/models"
	"devlink/internal/notifications"
	"devlink/internal/repository"
	"devlink/internal/service"
	"devlink/internal/storage"
	"devlink/internal/token"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.Storage
	app            *fiber.App
	wsApp          *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	auth        *middleware.AuthGateway
	rateLimiter *middleware.RateLimiter
	hub         *notifications.Hub
	realtime    *notifications.Realtime

	authService         *service.AuthService
	userService         *service.UserService
	postService         *service.PostService
	likeService         *service.LikeService
	commentService      *service.CommentService
	chatService         *service.ChatService
	notificationService *service.NotificationService
	searchService       *service.SearchService
	uploadService       *service.UploadService
}

// NewServer wires repositories, services and both Fiber apps over already
// opened dependencies. redisClient may be nil.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Storage) (*Server, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	tokens, err := token.NewService(cfg.AccessSecret, cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	followerRepo := repository.NewFollowerRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)

	hub := notifications.NewHub()
	realtime := notifications.NewRealtime(hub, notifications.NewNotifier(redisClient))
	profileCache := cache.New(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("devlink-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		auth:           middleware.NewAuthGateway(tokens),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
		hub:            hub,
		realtime:       realtime,
	}

	s.authService = service.NewAuthService(userRepo, tokens)
	s.userService = service.NewUserService(userRepo, followerRepo, profileCache, realtime)
	s.postService = service.NewPostService(postRepo)
	s.likeService = service.NewLikeService(postRepo, likeRepo)
	s.commentService = service.NewCommentService(postRepo, commentRepo)
	s.chatService = service.NewChatService(userRepo, chatRepo, realtime)
	s.notificationService = service.NewNotificationService(notificationRepo)
	s.searchService = service.NewSearchService(userRepo, postRepo)
	s.uploadService = service.NewUploadService(store, s.userService, s.postService, cfg.UploadMaxMB)

	s.app = s.newApp("devlink API")
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)

	s.wsApp = s.newApp("devlink realtime")
	s.wsApp.Use(recover.New())
	s.wsApp.Use(requestid.New())
	s.SetupWebSocketRoutes(s.wsApp)

	return s, nil
}

func (s *Server) newApp(name string) *fiber.App {
	bodyLimit := (s.config.UploadMaxMB + 1) << 20
	if bodyLimit < fiber.DefaultBodyLimit {
		bodyLimit = fiber.DefaultBodyLimit
	}
	return fiber.New(fiber.Config{
		AppName:      name,
		BodyLimit:    bodyLimit,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: s.errorHandler,
	})
}

// App is the HTTP API application.
func (s *Server) App() *fiber.App { return s.app }

// WSApp is the websocket application served on WS_PORT.
func (s *Server) WSApp() *fiber.App { return s.wsApp }

// Hub is the in-process realtime hub.
func (s *Server) Hub() *notifications.Hub { return s.hub }

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	fields := []any{
		slog.Int("status", status),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	}
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error", fields...)
	} else {
		middleware.Logger.DebugContext(c.UserContext(), "request rejected", fields...)
	}
	return models.RespondWithError(c, err, s.config.IsDevelopment())
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := strings.TrimSpace(s.config.AllowedOrigins)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "devlink metrics",
	}))

	if local, ok := s.store.(*storage.LocalStorage); ok {
		app.Static(s.config.UploadBaseURL, local.Dir(), fiber.Static{
			MaxAge: 3600,
		})
	}

	api := app.Group("/api")
	requireAuth := s.auth.Required()

	auth := api.Group("/auth")
	auth.Post("/register", s.rateLimiter.Handler(5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", s.rateLimiter.Handler(10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh-token", s.RefreshToken)
	auth.Post("/logout", s.Logout)
	auth.Get("/me", requireAuth, s.Me)

	users := api.Group("/users", requireAuth)
	users.Get("/", s.GetUsers)
	// Specific /:id/<resource> routes before the generic /:id.
	users.Post("/:id/follow", s.FollowUser)
	users.Post("/:id/unfollow", s.UnfollowUser)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id", s.GetUser)
	users.Put("/:id", s.UpdateUser)
	users.Delete("/:id", s.DeleteUser)

	posts := api.Group("/posts", requireAuth)
	posts.Post("/", s.CreatePost)
	posts.Get("/", s.GetPosts)
	posts.Get("/users/:id", s.GetUserPosts)
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/unlike", s.UnlikePost)
	posts.Get("/:id/likes", s.GetPostLikes)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	comments := api.Group("/comments", requireAuth)
	comments.Post("/", s.CreateComment)
	comments.Get("/:postId", s.GetComments)
	comments.Delete("/:id", s.DeleteComment)

	chat := api.Group("/chat", requireAuth)
	chat.Post("/", s.CreateChat)
	chat.Get("/:userId", s.GetChats)

	message := api.Group("/message", requireAuth)
	message.Post("/", s.rateLimiter.Handler(30, time.Minute, "send_message"), s.SendMessage)
	message.Get("/:chatId", s.GetMessages)

	notes := api.Group("/notifications", requireAuth)
	notes.Get("/", s.GetNotifications)
	notes.Post("/mark-as-read", s.MarkNotificationsRead)

	api.Get("/search", requireAuth, s.Search)

	upload := api.Group("/upload", requireAuth)
	upload.Post("/profile", s.UploadProfilePicture)
	upload.Post("/post", s.UploadPostImage)

	app.Use(s.NotFound)
}

// NotFound answers every unmatched route.
func (s *Server) NotFound(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Cannot find %s on this server", c.OriginalURL()))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis reachability. Redis is optional,
// so its absence does not make the instance unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database":  dbStatus,
			"redis":     redisStatus,
			"storage":   s.store.Driver(),
			"websocket": s.hub.ClientCount(),
		},
		"time": time.Now(),
	})
}

// Start wires realtime fan-out and serves the API and websocket listeners.
// It returns when either listener stops.
func (s *Server) Start() error {
	if err := s.realtime.StartWiring(s.shutdownCtx); err != nil {
		middleware.Logger.Warn("redis fan-out unavailable, delivering in-process", slog.String("error", err.Error()))
	}

	errCh := make(chan error, 2)
	go func() {
		middleware.Logger.Info("websocket server starting", slog.String("port", s.config.WSPort))
		errCh <- s.wsApp.Listen(":" + s.config.WSPort)
	}()
	go func() {
		middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
		errCh <- s.app.Listen(":" + s.config.Port)
	}()
	return <-errCh
}

// Shutdown stops both listeners, closes every socket, then releases the
// database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()

	var errs []error
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := s.wsApp.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket shutdown: %w", err))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close database: %w", cerr))
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", rerr))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
