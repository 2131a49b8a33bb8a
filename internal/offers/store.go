// Package offers holds the scraped comparable listings: an in-memory store
// scoped to a single pipeline run, and a sqlite archive that keeps offers
// across runs for the API and for trend inspection.
package offers

import (
	"sync"

	"github.com/sirupsen/logrus"

	"lotradar/server/internal/models"
)

// Store accumulates offers during a run, deduplicated by signature and
// indexed by district tag. Writers (queue handlers) and readers (the
// comparable filter) may run concurrently; a read sees either none or all
// of a pushed batch.
type Store struct {
	mu         sync.RWMutex
	bySig      map[string]*models.Offer
	byDistrict map[string][]*models.Offer
	logger     *logrus.Logger
}

func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		bySig:      make(map[string]*models.Offer),
		byDistrict: make(map[string][]*models.Offer),
		logger:     logger,
	}
}

// Add inserts a batch of offers, skipping invalid ones and signatures seen
// earlier in the run. Returns the number actually inserted.
func (s *Store) Add(batch []*models.Offer) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, offer := range batch {
		if offer == nil || !offer.Valid() {
			continue
		}
		sig := offer.Signature()
		if _, seen := s.bySig[sig]; seen {
			continue
		}
		s.bySig[sig] = offer
		s.byDistrict[offer.District] = append(s.byDistrict[offer.District], offer)
		added++
	}

	if added < len(batch) {
		s.logger.WithFields(logrus.Fields{
			"batch":   len(batch),
			"added":   added,
			"skipped": len(batch) - added,
		}).Debug("Offer batch partially skipped")
	}
	return added
}

// ByDistrict returns a copy of the offers tagged with the given district.
func (s *Store) ByDistrict(district string) []models.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byDistrict[district]
	out := make([]models.Offer, 0, len(stored))
	for _, o := range stored {
		out = append(out, *o)
	}
	return out
}

// All returns a copy of every stored offer, for the degraded selection path
// that cannot rely on district tags.
func (s *Store) All() []models.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Offer, 0, len(s.bySig))
	for _, o := range s.bySig {
		out = append(out, *o)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySig)
}

// Districts returns the distinct district tags currently present.
func (s *Store) Districts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := make([]string, 0, len(s.byDistrict))
	for tag := range s.byDistrict {
		tags = append(tags, tag)
	}
	return tags
}

// Reset drops all offers; called between runs.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySig = make(map[string]*models.Offer)
	s.byDistrict = make(map[string][]*models.Offer)
}
