package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OfferType distinguishes sale comparables from rent comparables.
type OfferType string

const (
	OfferTypeSale OfferType = "sale"
	OfferTypeRent OfferType = "rent"
)

// ValuationMethod records which path produced the market value.
type ValuationMethod string

const (
	MethodSales ValuationMethod = "sales"
	MethodNone  ValuationMethod = "none"
)

// LotStatus is derived from the plus count and drives notification decisions.
type LotStatus string

const (
	StatusDiscard  LotStatus = "discard"
	StatusReview   LotStatus = "review"
	StatusApproved LotStatus = "approved"
)

// StatusForPlusCount maps 0/1/2 plus signals to a status.
func StatusForPlusCount(count int) LotStatus {
	switch {
	case count >= 2:
		return StatusApproved
	case count == 1:
		return StatusReview
	default:
		return StatusDiscard
	}
}

// Lot is an auction property under evaluation.
type Lot struct {
	ID               string    `json:"id"`
	NoticeNumber     string    `json:"notice_number"`
	LotNumber        int       `json:"lot_number"`
	UUID             uuid.UUID `json:"uuid"`
	Name             string    `json:"name"`
	URL              string    `json:"url"`
	Address          string    `json:"address"`
	District         string    `json:"district"`
	Area             float64   `json:"area"`
	Price            float64   `json:"price"`
	PropertyCategory string    `json:"property_category"`
	AuctionType      string    `json:"auction_type"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`

	// Valuation results, zero until the engine runs.
	MarketPricePerSqm     float64         `json:"market_price_per_sqm"`
	MarketValue           float64         `json:"market_value"`
	CapitalizationRub     float64         `json:"capitalization_rub"`
	CapitalizationPercent float64         `json:"capitalization_percent"`
	MonthlyGap            float64         `json:"monthly_gap"`
	AnnualYieldPercent    float64         `json:"annual_yield_percent"`
	HasRentData           bool            `json:"has_rent_data"`
	Method                ValuationMethod `json:"valuation_method"`
	PlusSale              bool            `json:"plus_sale"`
	PlusRental            bool            `json:"plus_rental"`
	PlusCount             int             `json:"plus_count"`
	Status                LotStatus       `json:"status"`
}

// PricePerSqm returns the lot's own price per square meter, 0 for zero area.
func (l *Lot) PricePerSqm() float64 {
	if l.Area <= 0 {
		return 0
	}
	return l.Price / l.Area
}

// Signature identifies the lot across runs: a price change does not change
// the signature, so the ledger can detect it.
func (l *Lot) Signature() string {
	key := fmt.Sprintf("%s_%g_%s",
		strings.ToLower(strings.TrimSpace(l.Address)), l.Area, l.NoticeNumber)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Offer is a market listing used as a price comparable.
type Offer struct {
	ID            string    `json:"id"`
	LotUUID       uuid.UUID `json:"lot_uuid"`
	Address       string    `json:"address"`
	District      string    `json:"district"`
	Area          float64   `json:"area"`
	Price         float64   `json:"price"` // monthly for rent, total for sale
	Type          OfferType `json:"type"`
	URL           string    `json:"url"`
	DistanceToLot float64   `json:"distance_to_lot"` // km, 0 when unknown
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
}

// Valid reports whether the offer may participate in any estimator.
func (o Offer) Valid() bool {
	return o.Area > 0 && o.Price > 0
}

// PricePerSqm returns 0 for invalid offers instead of dividing by zero.
func (o Offer) PricePerSqm() float64 {
	if o.Area <= 0 {
		return 0
	}
	return o.Price / o.Area
}

// Signature returns the source id when present, otherwise a composite of the
// identifying fields.
func (o Offer) Signature() string {
	if o.ID != "" {
		return o.ID
	}
	key := fmt.Sprintf("%s_%g_%g_%s",
		strings.ToLower(strings.TrimSpace(o.Address)), o.Price, o.Area, o.Type)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ComparableSet is the filtered subset of offers relevant to one lot.
type ComparableSet struct {
	Sale []Offer `json:"sale"`
	Rent []Offer `json:"rent"`
}

// Empty reports whether neither side has comparables.
func (cs ComparableSet) Empty() bool {
	return len(cs.Sale) == 0 && len(cs.Rent) == 0
}

// DedupResult describes what the ledger knows about a lot signature.
type DedupResult struct {
	IsDuplicate   bool      `json:"is_duplicate"`
	PriceChanged  bool      `json:"price_changed"`
	PreviousPrice float64   `json:"previous_price"`
	TimesSeen     int       `json:"times_seen"`
	FirstSeen     time.Time `json:"first_seen"`
}
