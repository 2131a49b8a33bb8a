package offers

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"lotradar/server/internal/models"
)

// ArchivedOffer is the persisted form of a scraped offer.
type ArchivedOffer struct {
	Signature string  `gorm:"primaryKey" json:"signature"`
	LotUUID   string  `gorm:"index" json:"lot_uuid"`
	Address   string  `json:"address"`
	District  string  `gorm:"index" json:"district"`
	Area      float64 `json:"area"`
	Price     float64 `json:"price"`
	Type      string  `gorm:"index" json:"type"`
	URL       string  `json:"url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArchivedLot is the persisted form of a valuated lot; it feeds the HTTP API
// and the export sink.
type ArchivedLot struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	NoticeNumber string `gorm:"uniqueIndex:idx_notice_lot" json:"notice_number"`
	LotNumber    int    `gorm:"uniqueIndex:idx_notice_lot" json:"lot_number"`
	UUID         string `gorm:"index" json:"uuid"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Address      string `json:"address"`
	District     string `gorm:"index" json:"district"`
	Category     string `json:"category"`
	AuctionType  string `json:"auction_type"`

	Area  float64 `json:"area"`
	Price float64 `json:"price"`

	MarketPricePerSqm     float64 `json:"market_price_per_sqm"`
	MarketValue           float64 `json:"market_value"`
	CapitalizationRub     float64 `json:"capitalization_rub"`
	CapitalizationPercent float64 `json:"capitalization_percent"`
	MonthlyGap            float64 `json:"monthly_gap"`
	AnnualYieldPercent    float64 `json:"annual_yield_percent"`
	HasRentData           bool    `json:"has_rent_data"`
	Method                string  `json:"method"`
	PlusCount             int     `json:"plus_count"`
	Status                string  `gorm:"index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LotStats aggregates the archive for the /api/stats endpoint.
type LotStats struct {
	TotalLots     int64   `json:"total_lots"`
	Approved      int64   `json:"approved"`
	Review        int64   `json:"review"`
	Discarded     int64   `json:"discarded"`
	AvgCapPercent float64 `json:"avg_cap_percent"`
	AvgYield      float64 `json:"avg_yield"`
}

const archiveMaxRetries = 3

// Archive persists offers and valuated lots across runs.
type Archive struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewArchive(dbPath string, logger *logrus.Logger) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	if err := db.AutoMigrate(&ArchivedOffer{}, &ArchivedLot{}); err != nil {
		return nil, fmt.Errorf("migrate archive database: %w", err)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Archive{db: db, logger: logger}, nil
}

// SaveOffers upserts a batch of offers inside a transaction, retrying on
// failure the way the rest of the write path does.
func (a *Archive) SaveOffers(batch []*models.Offer) error {
	if len(batch) == 0 {
		return nil
	}

	records := make([]ArchivedOffer, 0, len(batch))
	for _, o := range batch {
		if o == nil || !o.Valid() {
			continue
		}
		records = append(records, ArchivedOffer{
			Signature: o.Signature(),
			LotUUID:   o.LotUUID.String(),
			Address:   o.Address,
			District:  o.District,
			Area:      o.Area,
			Price:     o.Price,
			Type:      string(o.Type),
			URL:       o.URL,
		})
	}
	if len(records) == 0 {
		return nil
	}

	return a.withRetry("offers", len(records), func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "signature"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "district", "updated_at"}),
		}).Create(&records).Error
	})
}

// SaveLots upserts valuated lots keyed by notice and lot number.
func (a *Archive) SaveLots(lots []*models.Lot) error {
	if len(lots) == 0 {
		return nil
	}

	records := make([]ArchivedLot, 0, len(lots))
	for _, l := range lots {
		records = append(records, ArchivedLot{
			NoticeNumber: l.NoticeNumber,
			LotNumber:    l.LotNumber,
			UUID:         l.UUID.String(),
			Name:         l.Name,
			URL:          l.URL,
			Address:      l.Address,
			District:     l.District,
			Category:     l.DisplayCategory(),
			AuctionType:  l.AuctionType,

			Area:  l.Area,
			Price: l.Price,

			MarketPricePerSqm:     l.MarketPricePerSqm,
			MarketValue:           l.MarketValue,
			CapitalizationRub:     l.CapitalizationRub,
			CapitalizationPercent: l.CapitalizationPercent,
			MonthlyGap:            l.MonthlyGap,
			AnnualYieldPercent:    l.AnnualYieldPercent,
			HasRentData:           l.HasRentData,
			Method:                string(l.Method),
			PlusCount:             l.PlusCount,
			Status:                string(l.Status),
		})
	}

	return a.withRetry("lots", len(records), func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "notice_number"}, {Name: "lot_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price", "district", "market_price_per_sqm", "market_value",
				"capitalization_rub", "capitalization_percent", "monthly_gap",
				"annual_yield_percent", "has_rent_data", "method",
				"plus_count", "status", "updated_at",
			}),
		}).Create(&records).Error
	})
}

func (a *Archive) withRetry(kind string, size int, write func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt <= archiveMaxRetries; attempt++ {
		if attempt > 0 {
			a.logger.Infof("Retrying %s archive write, attempt %d of %d", kind, attempt, archiveMaxRetries)
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		err = a.db.Transaction(write)
		if err == nil {
			a.logger.WithFields(logrus.Fields{"kind": kind, "count": size}).Debug("Archive batch written")
			return nil
		}
		a.logger.Errorf("Archive write failed: %v", err)
	}
	return fmt.Errorf("failed to archive %s batch after %d attempts: %w", kind, archiveMaxRetries, err)
}

// ListLots returns archived lots, optionally filtered by status and
// district, newest first.
func (a *Archive) ListLots(status, district string, limit int) ([]ArchivedLot, error) {
	q := a.db.Order("updated_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if district != "" {
		q = q.Where("district = ?", district)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var lots []ArchivedLot
	if err := q.Find(&lots).Error; err != nil {
		return nil, fmt.Errorf("list archived lots: %w", err)
	}
	return lots, nil
}

// GetLot fetches one archived lot by its row id.
func (a *Archive) GetLot(id uint) (*ArchivedLot, error) {
	var lot ArchivedLot
	if err := a.db.First(&lot, id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (a *Archive) Stats() (LotStats, error) {
	var stats LotStats

	if err := a.db.Model(&ArchivedLot{}).Count(&stats.TotalLots).Error; err != nil {
		return LotStats{}, err
	}

	counts := map[string]*int64{
		string(models.StatusApproved): &stats.Approved,
		string(models.StatusReview):   &stats.Review,
		string(models.StatusDiscard):  &stats.Discarded,
	}
	for status, dest := range counts {
		if err := a.db.Model(&ArchivedLot{}).Where("status = ?", status).Count(dest).Error; err != nil {
			return LotStats{}, err
		}
	}

	row := a.db.Model(&ArchivedLot{}).
		Select("COALESCE(AVG(capitalization_percent), 0), COALESCE(AVG(annual_yield_percent), 0)").
		Where("method <> ?", string(models.MethodNone)).
		Row()
	if err := row.Scan(&stats.AvgCapPercent, &stats.AvgYield); err != nil {
		return LotStats{}, err
	}

	return stats, nil
}
