package main

import (
	"context"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"os/signal"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"graphmem/internal/agent"
	"graphmem/internal/graph"
	"graphmem/internal/llm"
	"graphmem/pkg/config"
	apperrors "graphmem/pkg/errors"
	"graphmem/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize graph engine driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.GraphURI,
		neo4j.BasicAuth(cfg.GraphUser, cfg.GraphPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create graph driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify graph connectivity", zap.Error(err))
	}

	// Initialize dependencies
	engine := graph.NewBoltEngine(driver)
	store, err := graph.NewStore(ctx, engine)
	if err != nil {
		log.Fatal("Failed to open store session", zap.Error(err))
	}
	defer store.Close(context.Background())

	resolver := graph.NewResolver(store)
	retriever := graph.NewRetriever(store, cfg.RetrievalLimit, cfg.HistoryLimit, cfg.HopLimit)
	client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID)
	extractor := llm.NewExtractor(client)
	orch := agent.NewOrchestrator(store, resolver, retriever, extractor, client)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Start a conversation
		api.POST("/conversations", func(c *gin.Context) {
			var req struct {
				Title string `json:"title"`
			}
			if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			convID, err := orch.StartConversation(c.Request.Context(), req.Title)
			if err != nil {
				log.Error("Failed to start conversation", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start conversation"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"conversation_id": convID})
		})

		// Process a turn
		api.POST("/conversations/:id/turns", func(c *gin.Context) {
			convID := c.Param("id")

			var req struct {
				Message string `json:"message" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			result, err := orch.ProcessTurn(c.Request.Context(), convID, req.Message)
			if err != nil {
				if apperrors.IsErrorType(err, apperrors.ErrorTypeValidation) {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				log.Error("Failed to process turn", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"content":  result.AssistantText,
				"entities": result.Entities,
			})
		})

		// Conversation history
		api.GET("/conversations/:id/history", func(c *gin.Context) {
			messages, err := orch.History(c.Request.Context(), c.Param("id"))
			if err != nil {
				log.Error("Failed to fetch history", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"messages": messages})
		})

		// Delete a conversation and the messages it owns
		api.DELETE("/conversations/:id", func(c *gin.Context) {
			if err := orch.EndConversation(c.Request.Context(), c.Param("id")); err != nil {
				log.Error("Failed to delete conversation", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		// Update the status of a known task
		api.PATCH("/tasks", func(c *gin.Context) {
			var req struct {
				Description string `json:"description" binding:"required"`
				Status      string `json:"status" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			if err := orch.UpdateTaskStatus(c.Request.Context(), req.Description, req.Status); err != nil {
				if apperrors.IsErrorType(err, apperrors.ErrorTypeValidation) || apperrors.IsErrorType(err, apperrors.ErrorTypeQueryBuild) {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				log.Error("Failed to update task status", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "updated"})
		})
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Serve until interrupted, then drain
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
	}
	log.Info("Server exited")
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
