package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
	"github.com/kirinyoku/tourgo/internal/service"
	"github.com/kirinyoku/tourgo/internal/service/capacity"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the optional Redis-backed request guards. Nil fields disable the
// corresponding behavior.
type Deps struct {
	Idempotency *redisrepo.IdempotencyStore
	Limiter     *redisrepo.SlidingWindowLimiter
}

func NewRouter(
	svcs *service.Services,
	deps Deps,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bookings := r.Group("/bookings")
	{
		bookings.POST("", RateLimit(deps.Limiter, logger), handleCreateBooking(svcs, deps.Idempotency))
		bookings.GET("", handleListBookings(svcs))
		bookings.GET("/:id", handleGetBooking(svcs))
		bookings.PATCH("/:id", handleUpdateBooking(svcs))
		bookings.POST("/:id/cancel", handleCancelBooking(svcs))
		bookings.POST("/:id/payments", handleAddPayment(svcs, deps.Idempotency))
		bookings.POST("/:id/complete", handleCompleteBooking(svcs))
		bookings.POST("/:id/date-change", handleRequestDateChange(svcs))
	}

	r.GET("/departures/:id", handleGetDeparture(svcs))
	r.GET("/departures/:id/availability", handleGetAvailability(svcs))
	r.GET("/customers/:id/points", handleGetPoints(svcs))

	// Admin routes sit behind the operator's gateway.
	admin := r.Group("/admin")
	{
		admin.POST("/bookings/:id/refund", handleProcessRefund(svcs))
		admin.POST("/bookings/:id/date-change/approve", handleApproveDateChange(svcs))
		admin.POST("/bookings/:id/date-change/reject", handleRejectDateChange(svcs))

		admin.POST("/packages", handleCreatePackage(svcs))

		admin.POST("/departures", handleCreateDeparture(svcs))
		admin.PATCH("/departures/:id", handleUpdateDeparture(svcs))
		admin.PUT("/departures/:id/status", handleSetDepartureStatus(svcs))
		admin.POST("/departures/:id/reserve", handleReserveSeats(svcs))
		admin.POST("/departures/:id/release", handleReleaseSeats(svcs))

		admin.POST("/sweep", handleSweep(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

var kinds = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrInsufficientCapacity, http.StatusConflict},
	{domain.ErrInsufficientPoints, http.StatusUnprocessableEntity},
	{domain.ErrIllegalState, http.StatusConflict},
}

// opPrefix matches the "pkg.Type.Method:" markers services prepend.
var opPrefix = regexp.MustCompile(`^([a-z]+\.)+[A-Za-z]+: ?`)

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	for _, k := range kinds {
		if !errors.Is(err, k.err) {
			continue
		}

		msg := err.Error()
		for opPrefix.MatchString(msg) {
			msg = opPrefix.ReplaceAllString(msg, "")
		}
		msg = strings.TrimSuffix(msg, ": "+k.err.Error())

		resp := ErrorResponse{Error: msg}

		var seats capacity.SeatConflictError
		if errors.As(err, &seats) {
			resp.Seats = seats.SeatIDs
		}

		c.JSON(k.status, resp)
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
