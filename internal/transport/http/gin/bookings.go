package httpgin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tourgo/internal/domain"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
	"github.com/kirinyoku/tourgo/internal/service"
	"github.com/kirinyoku/tourgo/internal/service/datechange"
)

// @Summary  Create booking (idempotent, rate limited)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Booking
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "departure not open / seats unavailable"
// @Failure  422 {object} ErrorResponse "insufficient points"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /bookings [post]
func handleCreateBooking(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		in, err := req.toInput()
		if err != nil {
			respondErr(c, err)
			return
		}

		subject := strconv.FormatInt(req.CustomerID, 10)
		idempotent(c, idem, "create_booking", subject, http.StatusCreated, func() (any, error) {
			return svcs.Booking.Create(c.Request.Context(), in)
		})
	}
}

// @Summary  List bookings
// @Param    customer_id   query  int     false "customer"
// @Param    package_id    query  int     false "package"
// @Param    departure_id  query  int     false "group departure"
// @Param    status        query  string  false "comma-separated statuses"
// @Param    type          query  string  false "GROUP, PRIVATE or CUSTOM"
// @Param    start_from    query  string  false "start date lower bound"
// @Param    start_to      query  string  false "start date upper bound"
// @Param    limit         query  int     false "page size"
// @Param    offset        query  int     false "offset"
// @Success  200 {array}  domain.Booking
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := parseBookingFilter(c)
		if !ok {
			return
		}

		list, err := svcs.Booking.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}

		if list == nil {
			list = []domain.Booking{}
		}

		c.JSON(http.StatusOK, list)
	}
}

func parseBookingFilter(c *gin.Context) (domain.BookingFilter, bool) {
	f := domain.BookingFilter{
		Limit:  parseIntDefault(c.Query("limit"), 0),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}

	for name, dst := range map[string]**int64{
		"customer_id":  &f.CustomerID,
		"package_id":   &f.PackageID,
		"departure_id": &f.GroupDepartureID,
	} {
		s := c.Query(name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			badRequest(c, "invalid "+name)
			return f, false
		}
		*dst = &v
	}

	if s := c.Query("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			f.Statuses = append(f.Statuses, domain.BookingStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}

	if s := c.Query("type"); s != "" {
		t := domain.BookingType(strings.ToUpper(s))
		if !t.Valid() {
			badRequest(c, "invalid type")
			return f, false
		}
		f.Type = &t
	}

	for name, dst := range map[string]**time.Time{
		"start_from": &f.StartFrom,
		"start_to":   &f.StartTo,
	} {
		s := c.Query(name)
		if s == "" {
			continue
		}
		t, err := datechange.ParseDate(s)
		if err != nil {
			badRequest(c, "invalid "+name)
			return f, false
		}
		*dst = &t
	}

	return f, true
}

// @Summary  Get booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, b, "private, no-cache", false)
	}
}

// @Summary  Edit travelers or notes of a pending booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  UpdateBookingRequest true "payload"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "not pending"
// @Router   /bookings/{id} [patch]
func handleUpdateBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Booking.Update(c.Request.Context(), id, req.toInput())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Cancel booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  CancelBookingRequest true "payload"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "already cancelled / completed"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req CancelBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Booking.Cancel(c.Request.Context(), id, req.UserID, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Record payment (idempotent)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  AddPaymentRequest true "payload"
// @Success  201 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "booking closed"
// @Router   /bookings/{id}/payments [post]
func handleAddPayment(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req AddPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idempotent(c, idem, "add_payment", id.String(), http.StatusCreated, func() (any, error) {
			return svcs.Booking.AddPayment(
				c.Request.Context(),
				id,
				req.AmountCents,
				domain.PaymentMethod(req.Method),
				req.TransactionRef,
			)
		})
	}
}

// @Summary  Complete booking and award points
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "cancelled / already completed"
// @Router   /bookings/{id}/complete [post]
func handleCompleteBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Booking.Complete(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Request a date change
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  DateChangeRequest true "payload"
// @Success  201 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "request already pending / booking closed"
// @Router   /bookings/{id}/date-change [post]
func handleRequestDateChange(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req DateChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.DateChange.Request(c.Request.Context(), id, req.UserID, req.RequestedDate, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, b)
	}
}

// @Summary  Reward points balance and history
// @Param    id     path   int  true  "Customer ID"
// @Param    limit  query  int  false "history size"
// @Success  200 {object} PointsResponse
// @Failure  404 {object} ErrorResponse
// @Router   /customers/{id}/points [get]
func handleGetPoints(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		balance, err := svcs.Rewards.Balance(c.Request.Context(), customerID)
		if err != nil {
			respondErr(c, err)
			return
		}

		history, err := svcs.Rewards.History(c.Request.Context(), customerID, parseIntDefault(c.Query("limit"), 0))
		if err != nil {
			respondErr(c, err)
			return
		}

		if history == nil {
			history = []domain.RewardPointsEntry{}
		}

		c.JSON(http.StatusOK, PointsResponse{
			CustomerID: customerID,
			Balance:    balance,
			History:    history,
		})
	}
}
