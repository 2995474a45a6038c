package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/linemk/farm-market/internal/app"
	"github.com/linemk/farm-market/internal/app/handlers"
	"github.com/linemk/farm-market/internal/cache"
	"github.com/linemk/farm-market/internal/config"
	"github.com/linemk/farm-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/lib/logger/handlers/urllog"
	"github.com/linemk/farm-market/internal/lib/metrics"
	"github.com/linemk/farm-market/internal/service"
	"github.com/linemk/farm-market/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// цены и суммы в JSON - числа, а не строки
	decimal.MarshalJSONWithoutQuotes = true

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", logger.Err(err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to close app", logger.Err(err))
		}
	}()

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	messageRepo := storage.NewMessageRepository(application.DB)

	categoryCache := cache.NewCategories(application.Redis, cfg.Redis.CategoriesTTL)

	authService := service.NewAuthService(log, userRepo, cfg.JWT.Secret, cfg.JWT.TokenTTL)
	catalogService := service.NewCatalogService(log, productRepo, categoryCache)
	orderService := service.NewOrderService(log, application.DB, productRepo, orderRepo)
	messageService := service.NewMessageService(log, orderRepo, messageRepo)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(metrics.Middleware)

	router.Get("/health", handlers.HealthHandler(log, application.DB))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	jwtMW := jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret)

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handlers.RegisterHandler(log, authService))
			r.Post("/login", handlers.LoginHandler(log, authService))
			r.With(jwtMW).Get("/me", handlers.MeHandler(log, authService))
		})

		r.Route("/products", func(r chi.Router) {
			// каталог открыт без токена
			r.Get("/", handlers.ListProductsHandler(log, catalogService))
			r.Get("/categories", handlers.CategoriesHandler(log, catalogService))
			r.Get("/featured", handlers.FeaturedHandler(log, catalogService))
			r.Get("/{id}", handlers.GetProductHandler(log, catalogService))

			r.Group(func(r chi.Router) {
				r.Use(jwtMW)
				r.Get("/mine", handlers.MyProductsHandler(log, catalogService))
				r.Get("/my-products", handlers.MyProductsHandler(log, catalogService))
				r.Post("/", handlers.CreateProductHandler(log, catalogService))
				r.Put("/{id}", handlers.UpdateProductHandler(log, catalogService))
				r.Delete("/{id}", handlers.DeleteProductHandler(log, catalogService))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(jwtMW)
			r.Get("/", handlers.MyOrdersHandler(log, orderService))
			r.Post("/", handlers.CreateOrderHandler(log, orderService))
			r.Get("/received", handlers.ReceivedOrdersHandler(log, orderService))
			r.Get("/{id}", handlers.GetOrderHandler(log, orderService))
			r.Post("/{id}/accept", handlers.AcceptOrderHandler(log, orderService))
			r.Post("/{id}/reject", handlers.RejectOrderHandler(log, orderService))
			r.Post("/{id}/cancel", handlers.CancelOrderHandler(log, orderService))
			r.Put("/{id}/status", handlers.UpdateStatusHandler(log, orderService))

			r.Get("/{id}/messages", handlers.ListMessagesHandler(log, messageService))
			r.Post("/{id}/messages", handlers.SendMessageHandler(log, messageService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Err(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", logger.Err(err))
	}
	log.Info("server gracefully stopped")
}
