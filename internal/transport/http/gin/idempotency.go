package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	idempotencyLockTTL   = 60 * time.Second
)

// idempotent runs fn at most once per Idempotency-Key for the operation and
// subject, replaying the stored response on retries. Without a key or a
// store, fn simply runs.
func idempotent(
	c *gin.Context,
	idem *redisrepo.IdempotencyStore,
	operation, subject string,
	status int,
	fn func() (any, error),
) {
	idemKey := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if idem == nil || idemKey == "" {
		resp, err := fn()
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(status, resp)
		return
	}

	ctx := c.Request.Context()
	key := redisrepo.KeyIdem(operation, subject, idemKey)

	stored, done, claimed, err := idem.Claim(ctx, key, idempotencyLockTTL)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.Header(headerIdempotencyKey, idemKey)

	if done {
		c.Data(status, "application/json; charset=utf-8", []byte(stored))
		return
	}

	if !claimed {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
		return
	}

	resp, err := fn()
	if err != nil {
		_ = idem.Release(ctx, key)
		respondErr(c, err)
		return
	}

	b, err := json.Marshal(resp)
	if err != nil {
		_ = idem.Release(ctx, key)
		c.Status(http.StatusInternalServerError)
		return
	}

	_ = idem.SaveResult(ctx, key, string(b))
	c.Data(status, "application/json; charset=utf-8", b)
}
