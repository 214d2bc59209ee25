package httpgin

import (
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/service/booking"
	"github.com/kirinyoku/tourgo/internal/service/capacity"
	"github.com/kirinyoku/tourgo/internal/service/datechange"
	"github.com/samber/lo"
)

type TravelerInput struct {
	FullName    string `json:"full_name" binding:"required"`
	Age         int    `json:"age" binding:"gte=0"`
	PassportNo  string `json:"passport_no"`
	Nationality string `json:"nationality"`
}

func (t TravelerInput) toDomain() domain.Traveler {
	return domain.Traveler{
		FullName:    t.FullName,
		Age:         t.Age,
		PassportNo:  t.PassportNo,
		Nationality: t.Nationality,
	}
}

func travelersToDomain(in []TravelerInput) []domain.Traveler {
	return lo.Map(in, func(t TravelerInput, _ int) domain.Traveler { return t.toDomain() })
}

type CreateBookingRequest struct {
	CustomerID       int64           `json:"customer_id" binding:"required"`
	PackageID        int64           `json:"package_id" binding:"required"`
	Type             string          `json:"type" binding:"required,oneof=GROUP PRIVATE CUSTOM"`
	GroupDepartureID *int64          `json:"group_departure_id"`
	StartDate        string          `json:"start_date" binding:"required"`
	EndDate          string          `json:"end_date" binding:"required"`
	NumTravelers     int             `json:"num_travelers" binding:"required,gt=0"`
	Travelers        []TravelerInput `json:"travelers" binding:"required,min=1,dive"`
	TotalCents       int64           `json:"total_cents" binding:"required,gt=0"`
	Currency         string          `json:"currency"`
	ReservedSeats    []string        `json:"reserved_seats" binding:"omitempty,dive,required"`
	PointsToUse      int64           `json:"points_to_use" binding:"gte=0"`
	Notes            string          `json:"notes"`
}

func (r CreateBookingRequest) toInput() (booking.CreateInput, error) {
	start, err := datechange.ParseDate(r.StartDate)
	if err != nil {
		return booking.CreateInput{}, err
	}

	end, err := datechange.ParseDate(r.EndDate)
	if err != nil {
		return booking.CreateInput{}, err
	}

	currency := r.Currency
	if currency == "" {
		currency = "BDT"
	}

	return booking.CreateInput{
		CustomerID:       r.CustomerID,
		PackageID:        r.PackageID,
		Type:             domain.BookingType(r.Type),
		GroupDepartureID: r.GroupDepartureID,
		StartDate:        start,
		EndDate:          end,
		NumTravelers:     r.NumTravelers,
		Travelers:        travelersToDomain(r.Travelers),
		TotalCents:       r.TotalCents,
		Currency:         currency,
		ReservedSeats:    r.ReservedSeats,
		PointsToUse:      r.PointsToUse,
		Notes:            r.Notes,
	}, nil
}

type UpdateBookingRequest struct {
	Travelers *[]TravelerInput `json:"travelers" binding:"omitempty,dive"`
	Notes     *string          `json:"notes"`
}

func (r UpdateBookingRequest) toInput() booking.UpdateInput {
	in := booking.UpdateInput{Notes: r.Notes}
	if r.Travelers != nil {
		t := travelersToDomain(*r.Travelers)
		in.Travelers = &t
	}
	return in
}

type CancelBookingRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type AddPaymentRequest struct {
	AmountCents    int64  `json:"amount_cents" binding:"required,gt=0"`
	Method         string `json:"method" binding:"required,oneof=CARD BANK_TRANSFER MOBILE_BANKING CASH POINTS"`
	TransactionRef string `json:"transaction_ref"`
}

type DateChangeRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	RequestedDate string `json:"requested_date" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

type ProcessRefundRequest struct {
	AdminID string `json:"admin_id" binding:"required"`
}

type ReviewDateChangeRequest struct {
	AdminID      string `json:"admin_id" binding:"required"`
	NewStartDate string `json:"new_start_date"`
	Notes        string `json:"notes"`
}

type CreateDepartureRequest struct {
	PackageID           int64    `json:"package_id" binding:"required"`
	StartDate           string   `json:"start_date" binding:"required"`
	EndDate             string   `json:"end_date" binding:"required"`
	TotalSeats          int      `json:"total_seats" binding:"required,gt=0"`
	PricePerPersonCents int64    `json:"price_per_person_cents" binding:"gte=0"`
	Currency            string   `json:"currency"`
	Operators           []string `json:"operators" binding:"required,min=1,dive,required"`
	Itinerary           []string `json:"itinerary"`
	SeatIDs             []string `json:"seat_ids" binding:"omitempty,dive,required"`
}

func (r CreateDepartureRequest) toInput() (capacity.CreateDepartureInput, error) {
	start, err := datechange.ParseDate(r.StartDate)
	if err != nil {
		return capacity.CreateDepartureInput{}, err
	}

	end, err := datechange.ParseDate(r.EndDate)
	if err != nil {
		return capacity.CreateDepartureInput{}, err
	}

	return capacity.CreateDepartureInput{
		PackageID:           r.PackageID,
		StartDate:           start,
		EndDate:             end,
		TotalSeats:          r.TotalSeats,
		PricePerPersonCents: r.PricePerPersonCents,
		Currency:            r.Currency,
		Operators:           r.Operators,
		Itinerary:           r.Itinerary,
		SeatIDs:             r.SeatIDs,
	}, nil
}

type UpdateDepartureRequest struct {
	StartDate           *time.Time                   `json:"start_date"`
	EndDate             *time.Time                   `json:"end_date"`
	TotalSeats          *int                         `json:"total_seats"`
	PricePerPersonCents *int64                       `json:"price_per_person_cents"`
	Status              *domain.DepartureStatus      `json:"status"`
	SeatMap             *map[string]domain.SeatState `json:"seat_map"`
	Itinerary           *[]string                    `json:"itinerary"`
	Operators           *[]string                    `json:"operators"`
}

func (r UpdateDepartureRequest) toDomain() domain.DepartureUpdate {
	return domain.DepartureUpdate{
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
		TotalSeats:          r.TotalSeats,
		PricePerPersonCents: r.PricePerPersonCents,
		Status:              r.Status,
		SeatMap:             r.SeatMap,
		Itinerary:           r.Itinerary,
		Operators:           r.Operators,
	}
}

type SetDepartureStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=OPEN FULL CLOSED CANCELLED"`
}

type SeatsRequest struct {
	SeatCount int      `json:"seat_count" binding:"required,gt=0"`
	SeatIDs   []string `json:"seat_ids" binding:"omitempty,dive,required"`
}

type ErrorResponse struct {
	Error string   `json:"error"`
	Seats []string `json:"seats,omitempty"`
}

type PointsResponse struct {
	CustomerID int64                      `json:"customer_id"`
	Balance    int64                      `json:"balance"`
	History    []domain.RewardPointsEntry `json:"history"`
}
