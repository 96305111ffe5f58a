package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Simulates a chat provider: generates message and status webhook payloads
// and posts them to the gateway. A configurable fraction of statuses is
// sent before its message to exercise the out-of-order path.

type payloadText struct {
	Body string `json:"body"`
}

type payloadMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Timestamp string      `json:"timestamp"`
	Type      string      `json:"type"`
	Text      payloadText `json:"text"`
}

type payloadStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type payloadContact struct {
	WaID string `json:"wa_id"`
}

type payloadValue struct {
	Messages []payloadMessage `json:"messages,omitempty"`
	Statuses []payloadStatus  `json:"statuses,omitempty"`
	Contacts []payloadContact `json:"contacts,omitempty"`
}

type payloadChange struct {
	Value payloadValue `json:"value"`
}

type payloadEntry struct {
	Changes []payloadChange `json:"changes"`
}

type payloadMetaData struct {
	Entry []payloadEntry `json:"entry"`
}

type webhookPayload struct {
	MetaData payloadMetaData `json:"metaData"`
}

func wrap(value payloadValue) webhookPayload {
	return webhookPayload{
		MetaData: payloadMetaData{
			Entry: []payloadEntry{{
				Changes: []payloadChange{{Value: value}},
			}},
		},
	}
}

var sampleTexts = []string{
	"Hey, are you around?",
	"Sure, sounds good.",
	"Can you call me back later?",
	"On my way now.",
	"Got it, thanks!",
	"Let me check and get back to you.",
}

// Simulator drives the traffic loop and posts payloads to the gateway.
type Simulator struct {
	targetURL      string
	client         *http.Client
	rng            *rand.Rand
	waIDs          []string
	outOfOrderRate float64
	dropRate       float64
	mu             sync.Mutex

	sent     int64
	failed   int64
	statuses int64
}

func NewSimulator(targetURL string, outOfOrderRate, dropRate float64) *Simulator {
	return &Simulator{
		targetURL: targetURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		waIDs:          []string{"919937320320", "929967673820", "919712345678"},
		outOfOrderRate: outOfOrderRate,
		dropRate:       dropRate,
	}
}

// emitExchange produces one message and its delivery lifecycle. Depending
// on the out-of-order rate the first status is posted before the message.
func (s *Simulator) emitExchange(ctx context.Context) {
	s.mu.Lock()
	waID := s.waIDs[s.rng.Intn(len(s.waIDs))]
	text := sampleTexts[s.rng.Intn(len(sampleTexts))]
	outOfOrder := s.rng.Float64() < s.outOfOrderRate
	dropMessage := s.rng.Float64() < s.dropRate
	s.mu.Unlock()

	metaMsgID := "wamid." + uuid.New().String()
	now := time.Now().Unix()

	message := wrap(payloadValue{
		Contacts: []payloadContact{{WaID: waID}},
		Messages: []payloadMessage{{
			ID:        metaMsgID,
			From:      waID,
			Timestamp: strconv.FormatInt(now, 10),
			Type:      "text",
			Text:      payloadText{Body: text},
		}},
	})
	delivered := wrap(payloadValue{
		Statuses: []payloadStatus{{ID: metaMsgID, Status: "delivered"}},
	})
	read := wrap(payloadValue{
		Statuses: []payloadStatus{{ID: metaMsgID, Status: "read"}},
	})

	if outOfOrder {
		// Status first. If the message is also dropped the status must
		// stay parked on the gateway side for good.
		s.post(ctx, metaMsgID, "status", delivered)
		if !dropMessage {
			time.Sleep(s.jitter())
			s.post(ctx, metaMsgID, "message", message)
			time.Sleep(s.jitter())
			s.post(ctx, metaMsgID, "status", read)
		}
		return
	}

	s.post(ctx, metaMsgID, "message", message)
	time.Sleep(s.jitter())
	s.post(ctx, metaMsgID, "status", delivered)
	time.Sleep(s.jitter())
	s.post(ctx, metaMsgID, "status", read)
}

func (s *Simulator) jitter() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rng.Int63n(int64(300 * time.Millisecond)))
}

func (s *Simulator) post(ctx context.Context, metaMsgID, kind string, payload webhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.targetURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("failed to build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		log.Warn().Err(err).Str("meta_msg_id", metaMsgID).Msg("webhook post failed")
		return
	}
	defer resp.Body.Close()

	s.mu.Lock()
	s.sent++
	if kind == "status" {
		s.statuses++
	}
	s.mu.Unlock()

	log.Info().
		Str("meta_msg_id", metaMsgID).
		Str("kind", kind).
		Int("status_code", resp.StatusCode).
		Msg("webhook posted")
}

func (s *Simulator) stats() gin.H {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gin.H{
		"sent":              s.sent,
		"failed":            s.failed,
		"statuses":          s.statuses,
		"out_of_order_rate": s.outOfOrderRate,
		"drop_rate":         s.dropRate,
	}
}

// Handler exposes the control plane of the simulator.
type Handler struct {
	sim *Simulator
}

func (h *Handler) Emit(c *gin.Context) {
	count := 1
	if v := c.Query("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			count = n
		}
	}

	go func() {
		for i := 0; i < count; i++ {
			h.sim.emitExchange(context.Background())
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"emitting": count})
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.stats())
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var cfg struct {
		OutOfOrderRate *float64 `json:"out_of_order_rate"`
		DropRate       *float64 `json:"drop_rate"`
	}

	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.sim.mu.Lock()
	if cfg.OutOfOrderRate != nil && *cfg.OutOfOrderRate >= 0 && *cfg.OutOfOrderRate <= 1.0 {
		h.sim.outOfOrderRate = *cfg.OutOfOrderRate
	}
	if cfg.DropRate != nil && *cfg.DropRate >= 0 && *cfg.DropRate <= 1.0 {
		h.sim.dropRate = *cfg.DropRate
	}
	h.sim.mu.Unlock()

	c.JSON(http.StatusOK, h.sim.stats())
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/emit", handler.Emit)
		v1.GET("/stats", handler.Stats)
		v1.PUT("/config", handler.UpdateConfig)
		v1.GET("/health", handler.HealthCheck)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	targetURL := getEnv("TARGET_URL", "http://localhost:8080/webhook")
	outOfOrderRate := getEnvFloat("OUT_OF_ORDER_RATE", 0.3)
	dropRate := getEnvFloat("DROP_RATE", 0.05)
	emitInterval := getEnvDuration("EMIT_INTERVAL", 0)

	log.Info().
		Str("port", port).
		Str("target_url", targetURL).
		Float64("out_of_order_rate", outOfOrderRate).
		Float64("drop_rate", dropRate).
		Dur("emit_interval", emitInterval).
		Msg("Starting webhook traffic simulator")

	sim := NewSimulator(targetURL, outOfOrderRate, dropRate)
	handler := &Handler{sim: sim}
	router := SetupRouter(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional continuous mode. EMIT_INTERVAL=2s emits one exchange every
	// two seconds without needing the /emit endpoint.
	if emitInterval > 0 {
		go func() {
			ticker := time.NewTicker(emitInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					sim.emitExchange(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
