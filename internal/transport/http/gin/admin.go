package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/service"
	"github.com/kirinyoku/tourgo/internal/service/datechange"
)

// @Summary  Get departure
// @Param    id  path  int  true  "Departure ID"
// @Success  200  {object}  domain.GroupDeparture
// @Failure  404  {object}  ErrorResponse
// @Router   /departures/{id} [get]
func handleGetDeparture(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		departureID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		d, err := svcs.Catalog.GetDeparture(c.Request.Context(), departureID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, d, "public, max-age=60", true)
	}
}

// @Summary  Get seat counters
// @Param    id  path  int  true  "Departure ID"
// @Success  200  {object}  domain.DepartureAvailability
// @Router   /departures/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		departureID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		a, err := svcs.Catalog.Availability(c.Request.Context(), departureID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, a, "public, max-age=15", true)
	}
}

// @Summary  Process refund of a cancelled booking
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  ProcessRefundRequest true "payload"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "already processed / not cancelled / nothing due"
// @Router   /admin/bookings/{id}/refund [post]
func handleProcessRefund(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req ProcessRefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Booking.ProcessRefund(c.Request.Context(), id, req.AdminID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Approve pending date change
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  ReviewDateChangeRequest true "payload"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "no pending request"
// @Router   /admin/bookings/{id}/date-change/approve [post]
func handleApproveDateChange(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req ReviewDateChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var start time.Time
		if req.NewStartDate != "" {
			t, err := datechange.ParseDate(req.NewStartDate)
			if err != nil {
				respondErr(c, err)
				return
			}
			start = t
		}

		b, err := svcs.DateChange.Approve(c.Request.Context(), id, req.AdminID, start, req.Notes)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Reject pending date change
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  ReviewDateChangeRequest true "payload"
// @Success  200 {object} domain.Booking
// @Failure  409 {object} ErrorResponse "no pending request"
// @Router   /admin/bookings/{id}/date-change/reject [post]
func handleRejectDateChange(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req ReviewDateChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.DateChange.Reject(c.Request.Context(), id, req.AdminID, req.Notes)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Create package
// @Param    req body  domain.Package true "payload"
// @Success  201 {object} domain.Package
// @Router   /admin/packages [post]
func handleCreatePackage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p domain.Package
		if err := c.ShouldBindJSON(&p); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Catalog.CreatePackage(c.Request.Context(), &p); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, p)
	}
}

// @Summary  Create group departure
// @Param    req body  CreateDepartureRequest true "payload"
// @Success  201 {object} domain.GroupDeparture
// @Failure  400 {object} ErrorResponse
// @Router   /admin/departures [post]
func handleCreateDeparture(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateDepartureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		in, err := req.toInput()
		if err != nil {
			respondErr(c, err)
			return
		}

		d, err := svcs.Capacity.Create(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, d)
	}
}

// @Summary  Update departure fields
// @Param    id  path  int  true  "Departure ID"
// @Param    req body  UpdateDepartureRequest true "payload"
// @Success  200 {object} domain.GroupDeparture
// @Failure  400 {object} ErrorResponse
// @Router   /admin/departures/{id} [patch]
func handleUpdateDeparture(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		departureID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req UpdateDepartureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		d, err := svcs.Capacity.Update(c.Request.Context(), departureID, req.toDomain())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Override departure status
// @Param    id  path  int  true  "Departure ID"
// @Param    req body  SetDepartureStatusRequest true "payload"
// @Success  200 {object} domain.GroupDeparture
// @Router   /admin/departures/{id}/status [put]
func handleSetDepartureStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		departureID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req SetDepartureStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		d, err := svcs.Capacity.SetStatus(c.Request.Context(), departureID, domain.DepartureStatus(req.Status))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Reserve seats outside a booking
// @Param    id  path  int  true  "Departure ID"
// @Param    req body  SeatsRequest true "payload"
// @Success  200 {object} domain.GroupDeparture
// @Failure  409 {object} ErrorResponse "not open / insufficient seats / seat conflict"
// @Router   /admin/departures/{id}/reserve [post]
func handleReserveSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		departureID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req SeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		d, err := svcs.Capacity.Reserve(c.Request.Context(), departureID, req.SeatCount, req.SeatIDs)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Release seats
// @Param    id  path  int  true  "Departure ID"
// @Param    req body  SeatsRequest true "payload"
// @Success  200 {object} domain.GroupDeparture
// @Router   /admin/departures/{id}/release [post]
func handleReleaseSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		departureID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req SeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		d, err := svcs.Capacity.Release(c.Request.Context(), departureID, req.SeatCount, req.SeatIDs)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, d)
	}
}

// @Summary  Cancel unpaid bookings whose tour has started
// @Success  200 {object} booking.SweepResult
// @Router   /admin/sweep [post]
func handleSweep(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svcs.Booking.SweepUnpaidExpired(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}
