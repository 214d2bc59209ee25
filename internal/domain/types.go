package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CentsPerPoint is the value of one reward point in minor currency units.
const CentsPerPoint = 100

type BookingType string

const (
	BookingGroup   BookingType = "GROUP"
	BookingPrivate BookingType = "PRIVATE"
	BookingCustom  BookingType = "CUSTOM"
)

func (t BookingType) Valid() bool {
	switch t {
	case BookingGroup, BookingPrivate, BookingCustom:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingRefunded  BookingStatus = "REFUNDED"
)

// Live reports whether the booking still holds inventory.
func (s BookingStatus) Live() bool {
	return s == BookingPending || s == BookingConfirmed
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCard          PaymentMethod = "CARD"
	MethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	MethodMobileBanking PaymentMethod = "MOBILE_BANKING"
	MethodCash          PaymentMethod = "CASH"
	MethodPoints        PaymentMethod = "POINTS"
	MethodRefund        PaymentMethod = "REFUND"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodMobileBanking, MethodCash, MethodPoints, MethodRefund:
		return true
	}
	return false
}

type Payment struct {
	ID             uuid.UUID     `json:"id"`
	AmountCents    int64         `json:"amount_cents"`
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	TransactionRef string        `json:"transaction_ref,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CountsAsPaid is the single "effective paid" predicate: money received from
// the customer, excluding outgoing refund records.
func (p Payment) CountsAsPaid() bool {
	return p.Status == PaymentSuccess && p.Method != MethodRefund
}

type Traveler struct {
	FullName    string `json:"full_name"`
	Age         int    `json:"age,omitempty"`
	PassportNo  string `json:"passport_no,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

type CancellationRecord struct {
	Reason            string     `json:"reason"`
	CancelledBy       string     `json:"cancelled_by"`
	CancelledAt       time.Time  `json:"cancelled_at"`
	RefundCents       int64      `json:"refund_cents"`
	Policy            string     `json:"policy"`
	RefundProcessed   bool       `json:"refund_processed"`
	RefundProcessedAt *time.Time `json:"refund_processed_at,omitempty"`
	RefundProcessedBy string     `json:"refund_processed_by,omitempty"`
	PointsRestored    int64      `json:"points_restored,omitempty"`
}

type DateChangeStatus string

const (
	DateChangePending  DateChangeStatus = "PENDING"
	DateChangeApproved DateChangeStatus = "APPROVED"
	DateChangeRejected DateChangeStatus = "REJECTED"
)

type DateChangeRequest struct {
	RequestedDate time.Time        `json:"requested_date"`
	Reason        string           `json:"reason"`
	RequestedBy   int64            `json:"requested_by"`
	RequestedAt   time.Time        `json:"requested_at"`
	Status        DateChangeStatus `json:"status"`
	ReviewedBy    string           `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	ReviewNotes   string           `json:"review_notes,omitempty"`
}

type Booking struct {
	ID                uuid.UUID           `json:"id"`
	CustomerID        int64               `json:"customer_id"`
	PackageID         int64               `json:"package_id"`
	Type              BookingType         `json:"type"`
	GroupDepartureID  *int64              `json:"group_departure_id,omitempty"`
	StartDate         time.Time           `json:"start_date"`
	EndDate           time.Time           `json:"end_date"`
	NumTravelers      int                 `json:"num_travelers"`
	Travelers         []Traveler          `json:"travelers"`
	Notes             string              `json:"notes,omitempty"`
	TotalCents        int64               `json:"total_cents"`
	DiscountCents     int64               `json:"discount_cents"`
	FinalCents        int64               `json:"final_cents"`
	PointsUsed        int64               `json:"points_used"`
	PointsEarned      int64               `json:"points_earned"`
	Currency          string              `json:"currency"`
	Status            BookingStatus       `json:"status"`
	Payments          []Payment           `json:"payments"`
	Cancellation      *CancellationRecord `json:"cancellation,omitempty"`
	DateChangeRequest *DateChangeRequest  `json:"date_change_request,omitempty"`
	ReservedSeats     []string            `json:"reserved_seats,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// TotalPaid sums the payments that count as paid.
func (b *Booking) TotalPaid() int64 {
	return lo.SumBy(b.Payments, func(p Payment) int64 {
		if p.CountsAsPaid() {
			return p.AmountCents
		}
		return 0
	})
}

// PendingDateChange returns the open request, if any.
func (b *Booking) PendingDateChange() *DateChangeRequest {
	if b.DateChangeRequest != nil && b.DateChangeRequest.Status == DateChangePending {
		return b.DateChangeRequest
	}
	return nil
}

// Clone returns a deep copy of the booking.
func (b *Booking) Clone() *Booking {
	cp := *b
	if b.GroupDepartureID != nil {
		id := *b.GroupDepartureID
		cp.GroupDepartureID = &id
	}
	cp.Travelers = append([]Traveler(nil), b.Travelers...)
	cp.Payments = append([]Payment(nil), b.Payments...)
	cp.ReservedSeats = append([]string(nil), b.ReservedSeats...)
	if b.Cancellation != nil {
		c := *b.Cancellation
		cp.Cancellation = &c
	}
	if b.DateChangeRequest != nil {
		d := *b.DateChangeRequest
		cp.DateChangeRequest = &d
	}
	return &cp
}

type BookingFilter struct {
	CustomerID       *int64
	PackageID        *int64
	GroupDepartureID *int64
	Statuses         []BookingStatus
	Type             *BookingType
	StartFrom        *time.Time
	StartTo          *time.Time
	Limit            int
	Offset           int
}

// Match applies the filter to a single booking. Limit and Offset are ignored.
func (f BookingFilter) Match(b *Booking) bool {
	if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
		return false
	}
	if f.PackageID != nil && b.PackageID != *f.PackageID {
		return false
	}
	if f.GroupDepartureID != nil && (b.GroupDepartureID == nil || *b.GroupDepartureID != *f.GroupDepartureID) {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, b.Status) {
		return false
	}
	if f.Type != nil && b.Type != *f.Type {
		return false
	}
	if f.StartFrom != nil && b.StartDate.Before(*f.StartFrom) {
		return false
	}
	if f.StartTo != nil && b.StartDate.After(*f.StartTo) {
		return false
	}
	return true
}

type DepartureStatus string

const (
	DepartureOpen      DepartureStatus = "OPEN"
	DepartureFull      DepartureStatus = "FULL"
	DepartureClosed    DepartureStatus = "CLOSED"
	DepartureCancelled DepartureStatus = "CANCELLED"
)

func (s DepartureStatus) Valid() bool {
	switch s {
	case DepartureOpen, DepartureFull, DepartureClosed, DepartureCancelled:
		return true
	}
	return false
}

type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatBooked    SeatState = "BOOKED"
	SeatBlocked   SeatState = "BLOCKED"
)

type GroupDeparture struct {
	ID                  int64                `json:"id"`
	PackageID           int64                `json:"package_id"`
	StartDate           time.Time            `json:"start_date"`
	EndDate             time.Time            `json:"end_date"`
	TotalSeats          int                  `json:"total_seats"`
	BookedSeats         int                  `json:"booked_seats"`
	PricePerPersonCents int64                `json:"price_per_person_cents"`
	Currency            string               `json:"currency"`
	Status              DepartureStatus      `json:"status"`
	Operators           []string             `json:"operators"`
	Itinerary           []string             `json:"itinerary,omitempty"`
	SeatMap             map[string]SeatState `json:"seat_map,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

func (d *GroupDeparture) AvailableSeats() int {
	return d.TotalSeats - d.BookedSeats
}

func (d *GroupDeparture) Clone() *GroupDeparture {
	cp := *d
	cp.Operators = append([]string(nil), d.Operators...)
	cp.Itinerary = append([]string(nil), d.Itinerary...)
	if d.SeatMap != nil {
		cp.SeatMap = make(map[string]SeatState, len(d.SeatMap))
		for k, v := range d.SeatMap {
			cp.SeatMap[k] = v
		}
	}
	return &cp
}

// DepartureUpdate enumerates every mutable departure field. Nil means unchanged.
type DepartureUpdate struct {
	StartDate           *time.Time
	EndDate             *time.Time
	TotalSeats          *int
	PricePerPersonCents *int64
	Status              *DepartureStatus
	SeatMap             *map[string]SeatState
	Itinerary           *[]string
	Operators           *[]string
}

type DepartureAvailability struct {
	DepartureID int64           `json:"departure_id"`
	Status      DepartureStatus `json:"status"`
	Total       int             `json:"total"`
	Booked      int             `json:"booked"`
	Available   int             `json:"available"`
}

type Package struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	DefaultDays    int    `json:"default_days"`
	BasePriceCents int64  `json:"base_price_cents"`
	Currency       string `json:"currency"`
	IsActive       bool   `json:"is_active"`
}

type PointsEntryType string

const (
	PointsEarned  PointsEntryType = "EARNED"
	PointsUsed    PointsEntryType = "USED"
	PointsExpired PointsEntryType = "EXPIRED"
)

type RewardPointsEntry struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Amount     int64           `json:"amount"`
	Type       PointsEntryType `json:"type"`
	BookingID  *uuid.UUID      `json:"booking_id,omitempty"`
	Reason     string          `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Customer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RewardPoints int64     `json:"reward_points"`
	CreatedAt    time.Time `json:"created_at"`
}
