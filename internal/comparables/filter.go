// Package comparables selects the subset of scraped offers that can serve as
// market comparables for a given auction lot.
package comparables

import (
	"sort"
	"strings"
	"unicode"

	"lotradar/server/internal/models"
)

const (
	// Size-similarity tier: offers with area in [0.5x, 2.0x] of the lot's
	// own area. Applied only when it leaves a usable sample.
	sizeTierMinRatio = 0.5
	sizeTierMaxRatio = 2.0

	// minSampleForSizeTier gates both the district-filtered set and the
	// size-similar subset: tightening below 3 comparables starves the
	// estimator for no accuracy gain.
	minSampleForSizeTier = 3

	// Degraded-mode relevance scoring. District identity dominates; token
	// overlap and address specificity only break ties within a district.
	scoreDistrictMatch  = 100.0
	scorePerSharedToken = 10.0
	scoreMaxLengthBonus = 5.0

	relevanceThreshold        = 50.0
	relaxedRelevanceThreshold = 10.0
	degradedFallbackLimit     = 10
)

// Select narrows the offer pool to the lot's comparable set: valid offers
// only, partitioned by type, matched on district tag, with a size-similar
// subset preferred on the sale side when it keeps at least three members.
// An empty result on either side is an expected outcome, not an error.
func Select(lot *models.Lot, pool []models.Offer) models.ComparableSet {
	var set models.ComparableSet

	for i := range pool {
		offer := pool[i]
		if !offer.Valid() || offer.District != lot.District {
			continue
		}
		switch offer.Type {
		case models.OfferTypeSale:
			set.Sale = append(set.Sale, offer)
		case models.OfferTypeRent:
			set.Rent = append(set.Rent, offer)
		}
	}

	if len(set.Sale) >= minSampleForSizeTier {
		if similar := sizeSimilar(lot, set.Sale); len(similar) >= minSampleForSizeTier {
			set.Sale = similar
		}
	}

	return set
}

func sizeSimilar(lot *models.Lot, offers []models.Offer) []models.Offer {
	if lot.Area <= 0 {
		return nil
	}
	minArea := lot.Area * sizeTierMinRatio
	maxArea := lot.Area * sizeTierMaxRatio

	similar := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if o.Area >= minArea && o.Area <= maxArea {
			similar = append(similar, o)
		}
	}
	return similar
}

// SelectDegraded ranks the pool by a relevance score instead of strict
// district equality. It is the fallback for runs where geocoding and
// district tagging are unreliable: score offers, take everything above the
// threshold, relax the threshold if nothing clears it, and as a last resort
// return the best-scoring offers regardless of score.
func SelectDegraded(lot *models.Lot, pool []models.Offer) models.ComparableSet {
	type scored struct {
		offer models.Offer
		score float64
	}

	lotTokens := addressTokens(lot.Address)

	var candidates []scored
	for i := range pool {
		if !pool[i].Valid() {
			continue
		}
		candidates = append(candidates, scored{
			offer: pool[i],
			score: relevanceScore(lot, &pool[i], lotTokens),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	pick := func(minScore float64, limit int) []models.Offer {
		var picked []models.Offer
		for _, c := range candidates {
			if c.score < minScore {
				break
			}
			picked = append(picked, c.offer)
			if limit > 0 && len(picked) >= limit {
				break
			}
		}
		return picked
	}

	selected := pick(relevanceThreshold, 0)
	if len(selected) == 0 {
		selected = pick(relaxedRelevanceThreshold, 0)
	}
	if len(selected) == 0 {
		selected = pick(0, degradedFallbackLimit)
	}

	var set models.ComparableSet
	for _, o := range selected {
		switch o.Type {
		case models.OfferTypeSale:
			set.Sale = append(set.Sale, o)
		case models.OfferTypeRent:
			set.Rent = append(set.Rent, o)
		}
	}
	return set
}

func relevanceScore(lot *models.Lot, offer *models.Offer, lotTokens map[string]struct{}) float64 {
	score := 0.0

	if offer.District != "" && offer.District == lot.District {
		score += scoreDistrictMatch
	}

	for token := range addressTokens(offer.Address) {
		if _, ok := lotTokens[token]; ok {
			score += scorePerSharedToken
		}
	}

	// A longer address is a more specific one; give it a small edge so
	// "ул Ленина 10 стр 2" outranks bare "ул Ленина".
	lengthBonus := float64(len([]rune(offer.Address))) / 20
	if lengthBonus > scoreMaxLengthBonus {
		lengthBonus = scoreMaxLengthBonus
	}
	score += lengthBonus

	return score
}

// addressTokens splits an address into lowercase tokens, dropping short
// connective words so that overlap measures street and settlement names
// rather than "ул" and "д".
func addressTokens(address string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(address), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}
