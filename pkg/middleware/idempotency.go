package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/thainvbka/sports-booking-platform-sub000/pkg/response"
)

const (
	// IdempotencyKeyHeader is the request header carrying the client key.
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// ContextKeyIdempotencyKey is the gin context key for the extracted key.
	ContextKeyIdempotencyKey = "idempotency_key"

	idempotencyKeyPrefix = "idempotency:"

	statusProcessing = "processing"
	statusCompleted  = "completed"
)

// idempotencyRecord stores the state of an in-flight or completed request.
type idempotencyRecord struct {
	Key          string     `json:"key"`
	Status       string     `json:"status"`
	RequestHash  string     `json:"request_hash"`
	ResponseCode int        `json:"response_code"`
	ResponseBody string     `json:"response_body"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RedisClient is the subset of go-redis the middleware needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for the idempotency middleware.
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL for completed records.
	TTL time.Duration
	// ProcessingTTL bounds how long a request may hold the processing slot.
	ProcessingTTL time.Duration
	// SkipPaths bypass the check entirely.
	SkipPaths []string
	// RequiredMethods are the mutating methods guarded by the middleware.
	RequiredMethods []string
}

// DefaultIdempotencyConfig returns the configuration used on write routes.
func DefaultIdempotencyConfig(rdb RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:           rdb,
		TTL:             5 * time.Minute,
		ProcessingTTL:   60 * time.Second,
		RequiredMethods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

// Idempotency deduplicates retried write requests. A replay of a completed
// request returns the stored response; a replay of an in-flight request is
// rejected with 409.
func Idempotency(cfg *IdempotencyConfig) gin.HandlerFunc {
	if cfg.ProcessingTTL == 0 {
		cfg.ProcessingTTL = 60 * time.Second
	}

	return func(c *gin.Context) {
		for _, path := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}
		if !methodRequired(c.Request.Method, cfg.RequiredMethods) {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			// Optional: requests without a key run unguarded.
			c.Next()
			return
		}
		c.Set(ContextKeyIdempotencyKey, key)

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}
		reqHash := hashRequest(c, bodyBytes)

		ctx := c.Request.Context()
		redisKey := idempotencyKeyPrefix + key

		// Claim the processing slot atomically.
		rec := idempotencyRecord{
			Key:         key,
			Status:      statusProcessing,
			RequestHash: reqHash,
			CreatedAt:   time.Now(),
		}
		payload, _ := json.Marshal(rec)
		claimed, err := cfg.Redis.SetNX(ctx, redisKey, payload, cfg.ProcessingTTL).Result()
		if err != nil {
			// Redis being down must not block bookings; fail open.
			c.Next()
			return
		}

		if !claimed {
			existing, err := cfg.Redis.Get(ctx, redisKey).Result()
			if err != nil {
				c.Next()
				return
			}
			var prior idempotencyRecord
			if err := json.Unmarshal([]byte(existing), &prior); err == nil {
				if prior.RequestHash != reqHash {
					response.UnprocessableEntity(c, "IDEMPOTENCY_KEY_REUSED", "idempotency key reused with a different request")
					c.Abort()
					return
				}
				if prior.Status == statusCompleted {
					c.Data(prior.ResponseCode, "application/json", []byte(prior.ResponseBody))
					c.Abort()
					return
				}
			}
			response.Conflict(c, "REQUEST_IN_PROGRESS", "an identical request is still being processed")
			c.Abort()
			return
		}

		// Capture the response so replays can be served verbatim.
		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Next()

		now := time.Now()
		rec.Status = statusCompleted
		rec.ResponseCode = writer.Status()
		rec.ResponseBody = writer.body.String()
		rec.CompletedAt = &now
		payload, _ = json.Marshal(rec)
		_ = cfg.Redis.Set(ctx, redisKey, payload, cfg.TTL).Err()
	}
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func methodRequired(method string, required []string) bool {
	for _, m := range required {
		if m == method {
			return true
		}
	}
	return false
}

func hashRequest(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))
	if userID := c.GetString("user_id"); userID != "" {
		h.Write([]byte(userID))
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
