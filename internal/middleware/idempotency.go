package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/config"
)

// ctxSkipReplay marks a response the idempotency layer must not remember.
const ctxSkipReplay = "idempotency_skip"

// maxIdempotentBody bounds how much of a request body is read for hashing.
const maxIdempotentBody = 1 << 20

// SkipReplay tells NewIdempotency not to remember the current response, so
// a later request with the same key runs the handler again.  Handlers use it
// for answers that commit nothing, such as a suggested fallback slot.
func SkipReplay(c echo.Context) { c.Set(ctxSkipReplay, true) }

// requestFingerprint hashes the method, path and body so a key reused for a
// different request can be told apart from a retry.
func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// NewIdempotency makes retried requests carrying the same idempotency key
// return the first response instead of running the handler again.  Keys are
// scoped per user and bound to the request body: reusing a key with a
// different body gets 422.  A request arriving while the first is still
// running gets 409.  Server errors, conflicts and responses marked with
// SkipReplay are not remembered so the client can retry them.
func NewIdempotency(cfg config.IdempotencyConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("idempotency")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idem := strings.TrimSpace(c.Request().Header.Get(cfg.HeaderName))
			if idem == "" {
				return next(c)
			}
			if len(idem) > 128 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "idempotency key too long"})
			}

			req := c.Request()
			var body []byte
			if req.Body != nil {
				bs, err := io.ReadAll(io.LimitReader(req.Body, maxIdempotentBody+1))
				if err != nil {
					return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
				}
				if len(bs) > maxIdempotentBody {
					return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "body too large"})
				}
				body = bs
				req.Body = io.NopCloser(bytes.NewReader(body))
			}
			fp := requestFingerprint(req.Method, req.URL.Path, body)

			ctx := req.Context()
			respKey := keyf(cfg.Prefix, userID(c), idem, "resp")
			lockKey := keyf(cfg.Prefix, userID(c), idem, "lock")

			if bs, err := rdb.Get(ctx, respKey).Bytes(); err == nil && len(bs) > len(fp) {
				if string(bs[:len(fp)]) != fp {
					return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "idempotency key was used for a different request"})
				}
				if status, hdr, body, ok := decodePayload(bs[len(fp):]); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, echo.HeaderContentType) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("Idempotent-Replay", "true")
					return c.Blob(status, hdr.Get(echo.HeaderContentType), body)
				}
			}

			locked, err := rdb.SetNX(ctx, lockKey, 1, cfg.LockTTL).Result()
			if err != nil {
				log.Warn("redis error, running without idempotency", zap.Error(err))
				return next(c)
			}
			if !locked {
				return c.JSON(http.StatusConflict, echo.Map{"error": "a request with this idempotency key is already in progress"})
			}
			bg := context.WithoutCancel(ctx)
			defer func() { _ = rdb.Del(bg, lockKey).Err() }()

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = cw
			if err := next(c); err != nil {
				return err
			}
			if cw.status >= http.StatusInternalServerError || cw.status == http.StatusConflict {
				return nil
			}
			if skip, _ := c.Get(ctxSkipReplay).(bool); skip {
				return nil
			}
			payload, err := encodePayload(cw.status, c.Response().Header().Clone(), cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rdb.Set(bg, respKey, append([]byte(fp), payload...), cfg.TTL).Err(); err != nil {
				log.Warn("store idempotent response failed", zap.Error(err))
			}
			return nil
		}
	}
}
