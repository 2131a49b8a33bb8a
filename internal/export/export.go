// Package export persists the end-of-run lot dump: a CSV snapshot for the
// spreadsheet workflow and an archive write for the HTTP API.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"lotradar/server/internal/models"
	"lotradar/server/internal/offers"
)

var csvHeader = []string{
	"notice_number", "lot_number", "name", "address", "district", "category",
	"area", "price", "market_price_per_sqm", "market_value",
	"capitalization_rub", "capitalization_percent", "monthly_gap",
	"annual_yield_percent", "has_rent_data", "method", "plus_count", "status", "url",
}

// CSVSink writes one timestamped snapshot file per run.
type CSVSink struct {
	dir    string
	logger *logrus.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewCSVSink(dir string, logger *logrus.Logger) *CSVSink {
	return &CSVSink{dir: dir, logger: logger, now: time.Now}
}

func (s *CSVSink) Name() string {
	return "csv"
}

func (s *CSVSink) Export(lots []*models.Lot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("lots_%s.csv", s.now().Format("2006-01-02_15-04-05")))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, lot := range lots {
		if lot == nil {
			continue
		}
		record := []string{
			lot.NoticeNumber,
			strconv.Itoa(lot.LotNumber),
			lot.Name,
			lot.Address,
			lot.District,
			lot.DisplayCategory(),
			formatFloat(lot.Area),
			formatFloat(lot.Price),
			formatFloat(lot.MarketPricePerSqm),
			formatFloat(lot.MarketValue),
			formatFloat(lot.CapitalizationRub),
			formatFloat(lot.CapitalizationPercent),
			formatFloat(lot.MonthlyGap),
			formatFloat(lot.AnnualYieldPercent),
			strconv.FormatBool(lot.HasRentData),
			string(lot.Method),
			strconv.Itoa(lot.PlusCount),
			string(lot.Status),
			lot.URL,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file": path,
		"lots": len(lots),
	}).Info("Exported lot snapshot")
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ArchiveSink persists valuated lots into the sqlite archive.
type ArchiveSink struct {
	archive *offers.Archive
}

func NewArchiveSink(archive *offers.Archive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Name() string {
	return "archive"
}

func (s *ArchiveSink) Export(lots []*models.Lot) error {
	return s.archive.SaveLots(lots)
}
