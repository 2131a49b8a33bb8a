// Package pipeline orchestrates a valuation run: classify, filter, valuate,
// deduplicate, and hand results to the export and notification sinks. All
// run state lives in the Pipeline and its RunReport; nothing is global.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lotradar/server/internal/comparables"
	"lotradar/server/internal/district"
	"lotradar/server/internal/geocoding"
	"lotradar/server/internal/models"
	"lotradar/server/internal/offers"
	"lotradar/server/internal/valuation"
)

// Geocoder resolves an address to coordinates and administrative tags.
// Optional: a nil geocoder switches the pipeline to regex-only district
// classification.
type Geocoder interface {
	GeocodeAddress(address string) (geocoding.Result, error)
}

// Deduplicator is the persistent lot ledger. Its failures are the one hard
// error class in a run: treating "can't tell" as "new lot" would repeat
// notifications.
type Deduplicator interface {
	CheckAndRecord(lot *models.Lot) (models.DedupResult, error)
}

// ExportSink receives the full set of valuated lots at the end of a run.
type ExportSink interface {
	Name() string
	Export(lots []*models.Lot) error
}

// NotificationSink receives individual lots the scoring found worth
// surfacing, together with their dedup detail for message templating.
type NotificationSink interface {
	Name() string
	Notify(lot *models.Lot, detail models.DedupResult) error
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	LotsProcessed int `json:"lots_processed"`
	Duplicates    int `json:"duplicates"`
	PriceChanges  int `json:"price_changes"`
	Approved      int `json:"approved"`
	Review        int `json:"review"`
	Discarded     int `json:"discarded"`
	Notified      int `json:"notified"`

	// GeocoderDegraded is set when geocoding failed for at least one lot
	// and the regex classifier carried the run alone.
	GeocoderDegraded bool `json:"geocoder_degraded"`
}

// Pipeline wires the valuation components together for one deployment.
// Safe for sequential runs; a single run processes lots one at a time.
type Pipeline struct {
	store    *offers.Store
	engine   *valuation.Engine
	ledger   Deduplicator
	geocoder Geocoder
	logger   *logrus.Logger

	exports  []ExportSink
	notifier NotificationSink
}

func New(store *offers.Store, engine *valuation.Engine, ledger Deduplicator, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		store:  store,
		engine: engine,
		ledger: ledger,
		logger: logger,
	}
}

// WithGeocoder attaches the optional geocoding collaborator.
func (p *Pipeline) WithGeocoder(g Geocoder) *Pipeline {
	p.geocoder = g
	return p
}

// AddExportSink registers a sink for the end-of-run lot dump.
func (p *Pipeline) AddExportSink(sink ExportSink) {
	p.exports = append(p.exports, sink)
}

// SetNotificationSink registers the per-lot notification sink.
func (p *Pipeline) SetNotificationSink(sink NotificationSink) {
	p.notifier = sink
}

// HandleOfferBatch tags incoming offers with a district and stores them.
// Registered as a queue subscriber; runs concurrently with other handlers.
func (p *Pipeline) HandleOfferBatch(batch []*models.Offer) error {
	for _, offer := range batch {
		if offer == nil {
			continue
		}
		if offer.District == "" {
			offer.District = district.Classify(offer.Address)
		}
	}
	p.store.Add(batch)
	return nil
}

// ProcessLots runs the full valuation pass over collected lots. Every lot
// produces a complete record, valued or not; only a ledger failure aborts
// the run.
func (p *Pipeline) ProcessLots(lots []*models.Lot) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now()}

	var exported []*models.Lot
	for _, lot := range lots {
		if lot == nil {
			continue
		}
		report.LotsProcessed++

		p.classify(lot, report)

		set := p.selectComparables(lot)
		p.engine.Valuate(lot, set)

		detail, err := p.ledger.CheckAndRecord(lot)
		if err != nil {
			return report, fmt.Errorf("dedup check for lot %s: %w", lot.NoticeNumber, err)
		}

		switch {
		case detail.IsDuplicate:
			report.Duplicates++
			p.logger.WithFields(logrus.Fields{
				"notice":     lot.NoticeNumber,
				"times_seen": detail.TimesSeen,
			}).Info("Skipping duplicate lot")
			continue
		case detail.PriceChanged:
			report.PriceChanges++
			p.logger.WithFields(logrus.Fields{
				"notice":    lot.NoticeNumber,
				"old_price": detail.PreviousPrice,
				"new_price": lot.Price,
			}).Info("Known lot with changed price")
		}

		switch lot.Status {
		case models.StatusApproved:
			report.Approved++
		case models.StatusReview:
			report.Review++
		default:
			report.Discarded++
		}

		exported = append(exported, lot)

		if p.notifier != nil && p.engine.ShouldNotify(lot) {
			if err := p.notifier.Notify(lot, detail); err != nil {
				p.logger.WithError(err).WithField("sink", p.notifier.Name()).Error("Notification failed")
			} else {
				report.Notified++
			}
		}
	}

	for _, sink := range p.exports {
		if err := sink.Export(exported); err != nil {
			p.logger.WithError(err).WithField("sink", sink.Name()).Error("Export failed")
		}
	}

	report.FinishedAt = time.Now()
	p.logger.WithFields(logrus.Fields{
		"processed":     report.LotsProcessed,
		"duplicates":    report.Duplicates,
		"price_changes": report.PriceChanges,
		"approved":      report.Approved,
		"notified":      report.Notified,
	}).Info("Pipeline run finished")

	return report, nil
}

// classify fills the lot's district once. Geocoder data wins when the regex
// classifier can only produce the default city bucket; geocoder failures
// degrade to regex-only and mark the report.
func (p *Pipeline) classify(lot *models.Lot, report *RunReport) {
	if lot.District != "" {
		return
	}

	lot.District = district.Classify(lot.Address)

	if p.geocoder == nil {
		return
	}

	result, err := p.geocoder.GeocodeAddress(lot.Address)
	if err != nil {
		report.GeocoderDegraded = true
		p.logger.WithError(err).WithField("address", lot.Address).Warn("Geocoding failed, using regex classification")
		return
	}

	lot.Latitude = &result.Latitude
	lot.Longitude = &result.Longitude
	if lot.District == district.DefaultTag && result.District != "" {
		lot.District = result.District
	}
}

// selectComparables queries the store for the lot's district; when the
// district has no offers at all the relevance-ranked fallback over the full
// pool is used instead.
func (p *Pipeline) selectComparables(lot *models.Lot) models.ComparableSet {
	pool := p.store.ByDistrict(lot.District)
	if len(pool) > 0 {
		set := comparables.Select(lot, pool)
		p.attachDistances(lot, &set)
		return set
	}

	p.logger.WithFields(logrus.Fields{
		"notice":   lot.NoticeNumber,
		"district": lot.District,
	}).Debug("No offers in district, using relevance fallback")

	set := comparables.SelectDegraded(lot, p.store.All())
	p.attachDistances(lot, &set)
	return set
}

func (p *Pipeline) attachDistances(lot *models.Lot, set *models.ComparableSet) {
	if lot.Latitude == nil || lot.Longitude == nil {
		return
	}
	for _, list := range [][]models.Offer{set.Sale, set.Rent} {
		for i := range list {
			o := &list[i]
			if o.Latitude != nil && o.Longitude != nil {
				o.DistanceToLot = geocoding.DistanceKm(*lot.Latitude, *lot.Longitude, *o.Latitude, *o.Longitude)
			}
		}
	}
}
