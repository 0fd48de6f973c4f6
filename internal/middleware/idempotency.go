package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader   = "Idempotency-Key"
	idempotentReplayHeader = "Idempotent-Replayed"
	idempotencyPrefix      = "ledger:v1:idem:"
	inFlightMarker         = "__in_flight__"
	defaultStoreTimeout    = 2 * time.Second
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyOptions tunes response replay.
type IdempotencyOptions struct {
	TTL          time.Duration
	StoreTimeout time.Duration
	// Required rejects unsafe requests that carry no Idempotency-Key.
	Required bool
}

// Idempotency replays the stored response for a repeated Idempotency-Key. Keys are scoped
// to the authenticated user and route. Only 2xx responses are stored: a denial such as 402
// releases the key so a retry after a top-up reaches the handler again. A nil cache
// disables replay.
func Idempotency(cache *redis.Client, opts IdempotencyOptions, logger *slog.Logger) fiber.Handler {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		if cache == nil {
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			if opts.Required {
				return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
			}
			return c.Next()
		}
		userID, _ := c.Locals(LocalUserID).(string)
		cacheKey := idempotencyPrefix + userID + ":" + c.Path() + ":" + key

		ctx, cancel := context.WithTimeout(context.Background(), opts.StoreTimeout)
		defer cancel()

		raw, err := cache.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			if string(raw) == inFlightMarker {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still processing")
			}
			var stored cachedResponse
			if err := json.Unmarshal(raw, &stored); err != nil {
				logger.Warn("undecodable idempotent response", "key", key, "error", err)
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			}
			c.Set(idempotentReplayHeader, "true")
			if stored.ContentType != "" {
				c.Set(fiber.HeaderContentType, stored.ContentType)
			}
			return c.Status(stored.Status).Send(stored.Body)
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store unavailable")
		}

		ok, err := cache.SetNX(ctx, cacheKey, inFlightMarker, opts.TTL).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store unavailable")
		}
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still processing")
		}

		release := func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), opts.StoreTimeout)
			defer cancel()
			cache.Del(cleanupCtx, cacheKey)
		}

		if err := c.Next(); err != nil {
			release()
			return err
		}

		status := c.Response().StatusCode()
		if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
			release()
			return nil
		}

		payload, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err != nil {
			logger.Error("encode idempotent response", "key", key, "error", err)
			release()
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.Background(), opts.StoreTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, opts.TTL).Err(); err != nil {
			// The handler already ran; the body request_id still guards the ledger.
			logger.Error("persist idempotent response", "key", key, "error", err)
			cache.Del(persistCtx, cacheKey)
		}
		return nil
	}
}
