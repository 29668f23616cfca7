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

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/customer-console/internal/api"
	"github.com/hypernova-labs/customer-console/internal/app"
	"github.com/hypernova-labs/customer-console/internal/cache"
	"github.com/hypernova-labs/customer-console/internal/config"
	"github.com/hypernova-labs/customer-console/internal/gateway"
	"github.com/hypernova-labs/customer-console/internal/session"
	"github.com/hypernova-labs/customer-console/internal/viewstate"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.WithField("backend", cfg.Gateway.Backend).Info("Starting Customer Console...")

	// Configurar modo de Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Construir el gateway según el backend configurado
	var (
		data gateway.DataGateway
		auth gateway.AuthGateway
	)
	switch cfg.Gateway.Backend {
	case config.BackendSupabase:
		sb, err := gateway.NewSupabaseGateway(&cfg.Supabase, logger)
		if err != nil {
			logger.Fatalf("Error initializing Supabase gateway: %v", err)
		}
		if err := sb.HealthCheck(); err != nil {
			logger.Warnf("Supabase health check failed: %v", err)
		}
		data = sb
		auth = sb
	case config.BackendPostgres:
		pg, err := gateway.NewPostgresGateway(cfg, logger)
		if err != nil {
			logger.Fatalf("Error connecting to database: %v", err)
		}
		defer pg.Close()
		data = pg
	case config.BackendMemory:
		data = gateway.NewMemoryGateway(gateway.SeedCustomers())
	default:
		logger.Fatalf("Unknown gateway backend: %s", cfg.Gateway.Backend)
	}

	// Conectar el mirror de Redis si está habilitado
	var mirror *cache.Mirror
	if cfg.Redis.Enabled {
		mirror, err = cache.NewMirror(cfg, logger)
		if err != nil {
			logger.Warnf("Error connecting to Redis, running without mirror: %v", err)
			mirror = nil
		} else {
			defer mirror.Close()
		}
	}

	// Inicializar el núcleo: sesión, view-state, cache y orquestador
	sessions := session.NewController(auth, logger)
	ctx := context.Background()
	if err := sessions.Initialize(ctx); err != nil {
		logger.Warnf("Error initializing session controller: %v", err)
	}
	defer sessions.Close()

	views := viewstate.NewMachine(logger)
	entityCache := cache.New()

	controller := app.NewController(data, sessions, views, entityCache, mirror, logger)
	controller.Start(ctx)
	defer controller.Close()

	// Inicializar la API de presentación
	apiHandler := api.NewAPI(controller, sessions, logger)

	// Configurar router
	router := setupRouter(apiHandler, cfg)

	// Crear servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para señales de terminación
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor en goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar señal de terminación
	<-quit
	logger.Info("Shutting down server...")

	// Contexto con timeout para shutdown graceful
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown graceful del servidor
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	// Configurar nivel de log
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configurar formato
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Middleware global
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Middleware de CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "customer-console",
			"version":   "1.0.0",
		})
	})

	// API v1
	v1 := router.Group("/v1")
	{
		// Snapshot de presentación (visible también sin sesión, para que
		// la UI pueda decidir entre login y listado)
		v1.GET("/state", apiHandler.GetState)

		// Autenticación (solo la variante con servicio de auth)
		if cfg.AuthEnabled() {
			authGroup := v1.Group("/auth")
			{
				authGroup.POST("/signup", apiHandler.SignUp)
				authGroup.POST("/login", apiHandler.SignIn)
				authGroup.POST("/logout", apiHandler.SignOut)
			}
		}

		// Intents de datos (protegidos por sesión en la variante
		// autenticada)
		data := v1.Group("")
		if cfg.AuthEnabled() {
			data.Use(apiHandler.SessionRequiredMiddleware())
		}
		{
			data.POST("/refresh", apiHandler.Refresh)
			data.POST("/intents/create", apiHandler.CreateClicked)
			data.POST("/intents/edit/:id", apiHandler.EditClicked)
			data.POST("/intents/cancel", apiHandler.FormCancelled)
			data.POST("/intents/submit", apiHandler.FormSubmitted)
			data.DELETE("/customers/:id", apiHandler.DeleteClicked)
		}
	}

	return router
}
