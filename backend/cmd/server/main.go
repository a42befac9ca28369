package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"trupharma/backend/internal/query"
	"trupharma/backend/pkg/config"
	"trupharma/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge graph API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Lazy handle to the built graph. The server starts even when the
	// graph file has not been built yet and answers 503 until it exists.
	loader := query.NewLoader(cfg.KGPath)
	defer loader.Close()

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(requestID())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "graph": graphStatus(loader)})
	})

	// API routes
	api := router.Group("/api")
	{
		drug := api.Group("/drug/:name")
		drug.Use(requireGraph(loader, log))

		drug.GET("", drugHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			summary, err := e.Summary(ctx, name)
			if err != nil || summary == nil {
				return nil, err
			}
			return summary, nil
		}))
		drug.GET("/identity", drugHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			identity, err := e.Identity(ctx, name)
			if err != nil || identity == nil {
				return nil, err
			}
			return identity, nil
		}))
		drug.GET("/interactions", drugListHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			return e.Interactions(ctx, name)
		}))
		drug.GET("/co-reported", drugListHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			return e.CoReported(ctx, name)
		}))
		drug.GET("/reactions", drugListHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			return e.Reactions(ctx, name)
		}))
		drug.GET("/label-reactions", drugListHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			return e.LabelReactions(ctx, name)
		}))
		drug.GET("/ingredients", drugListHandler(log, func(ctx context.Context, e *query.Engine, name string) (interface{}, error) {
			return e.Ingredients(ctx, name)
		}))
		drug.GET("/disparity", func(c *gin.Context) {
			name := c.Param("name")
			engine := c.MustGet(engineKey).(*query.Engine)
			ctx := c.Request.Context()

			nodeID, err := engine.Resolve(ctx, name)
			if err == nil && nodeID == "" {
				c.JSON(http.StatusNotFound, gin.H{"error": "Drug not found"})
				return
			}
			var report *query.DisparityReport
			if err == nil {
				report, err = engine.Disparity(ctx, name)
			}
			if err != nil {
				log.Error("Query failed",
					zap.String("drug", name),
					zap.Error(err),
				)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed"})
				return
			}
			if report == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "No reaction data for drug"})
				return
			}
			c.JSON(http.StatusOK, report)
		})
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("graph", cfg.KGPath),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

const engineKey = "kg_engine"

func graphStatus(loader *query.Loader) string {
	switch loader.State() {
	case query.StateLoaded:
		return "loaded"
	case query.StateAbsent:
		return "absent"
	}
	return "not_loaded"
}

// requireGraph resolves the shared engine and aborts with 503 until the
// graph file exists
func requireGraph(loader *query.Loader, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, err := loader.Get()
		if err == query.ErrGraphAbsent {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Knowledge graph has not been built yet",
			})
			return
		}
		if err != nil {
			log.Error("Failed to open knowledge graph", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to open knowledge graph",
			})
			return
		}
		c.Set(engineKey, engine)
		c.Next()
	}
}

type drugQuery func(ctx context.Context, e *query.Engine, name string) (interface{}, error)

// drugHandler serves single-object accessors; a nil result means the name
// did not resolve
func drugHandler(log *zap.Logger, fn drugQuery) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		engine := c.MustGet(engineKey).(*query.Engine)

		result, err := fn(c.Request.Context(), engine, name)
		if err != nil {
			log.Error("Query failed",
				zap.String("drug", name),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed"})
			return
		}
		if result == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Drug not found"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// drugListHandler serves list accessors; an unresolved name is 404, a
// resolved drug with no data is an empty list
func drugListHandler(log *zap.Logger, fn drugQuery) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		engine := c.MustGet(engineKey).(*query.Engine)
		ctx := c.Request.Context()

		nodeID, err := engine.Resolve(ctx, name)
		if err != nil {
			log.Error("Name resolution failed",
				zap.String("drug", name),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed"})
			return
		}
		if nodeID == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Drug not found"})
			return
		}

		result, err := fn(ctx, engine, name)
		if err != nil {
			log.Error("Query failed",
				zap.String("drug", name),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// requestID tags every request with a correlation id
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
