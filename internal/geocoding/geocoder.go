// Package geocoding resolves free-text lot addresses to coordinates and an
// administrative breakdown via Nominatim. The pipeline works without it: on
// any failure the caller falls back to regex district classification.
package geocoding

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/sirupsen/logrus"
)

// Result is the resolved location for one address. District, City and
// Region may be empty when Nominatim has no administrative data for the
// point.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	District  string  `json:"district,omitempty"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
}

type Geocoder struct {
	logger    *logrus.Logger
	cacheDir  string
	cache     map[string]Result
	cacheLock sync.RWMutex
	client    *http.Client
	baseURL   string
}

func NewGeocoder(logger *logrus.Logger, cacheDir string) *Geocoder {
	os.MkdirAll(cacheDir, 0755)

	g := &Geocoder{
		logger:   logger,
		cacheDir: cacheDir,
		cache:    make(map[string]Result),
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  "https://nominatim.openstreetmap.org/search",
	}

	g.loadCache()

	return g
}

func (g *Geocoder) loadCache() {
	cacheFile := filepath.Join(g.cacheDir, "geocode_cache.json")
	data, err := os.ReadFile(cacheFile)
	if err != nil {
		g.logger.Warnf("Could not load geocode cache: %v", err)
		return
	}

	err = json.Unmarshal(data, &g.cache)
	if err != nil {
		g.logger.Errorf("Failed to parse geocode cache: %v", err)
		return
	}

	g.logger.Infof("Loaded %d cached addresses", len(g.cache))
}

func (g *Geocoder) saveCache() {
	g.cacheLock.RLock()
	defer g.cacheLock.RUnlock()

	cacheFile := filepath.Join(g.cacheDir, "geocode_cache.json")
	data, err := json.Marshal(g.cache)
	if err != nil {
		g.logger.Errorf("Failed to marshal geocode cache: %v", err)
		return
	}

	err = os.WriteFile(cacheFile, data, 0644)
	if err != nil {
		g.logger.Errorf("Failed to save geocode cache: %v", err)
		return
	}

	g.logger.Info("Saved geocode cache to disk")
}

type nominatimResponse []struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		Suburb       string `json:"suburb"`
		CityDistrict string `json:"city_district"`
		City         string `json:"city"`
		Town         string `json:"town"`
		State        string `json:"state"`
	} `json:"address"`
}

// GeocodeAddress resolves an address inside Russia. Results are cached on
// disk since auction addresses repeat heavily between runs.
func (g *Geocoder) GeocodeAddress(address string) (Result, error) {
	g.cacheLock.RLock()
	if cached, ok := g.cache[address]; ok {
		g.cacheLock.RUnlock()
		g.logger.WithFields(logrus.Fields{
			"address": address,
			"source":  "cache",
		}).Debug("Found coordinates in cache")
		return cached, nil
	}
	g.cacheLock.RUnlock()

	g.logger.WithField("address", address).Info("Geocoding address with Nominatim")

	// Respect Nominatim's usage policy
	time.Sleep(time.Second)

	params := url.Values{
		"q":              []string{address},
		"format":         []string{"json"},
		"limit":          []string{"1"},
		"countrycodes":   []string{"ru"},
		"addressdetails": []string{"1"},
	}

	req, err := http.NewRequest("GET", g.baseURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %v", err)
	}

	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", "LotRadar Auction Analyzer/1.0")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("address", address).Error("Geocoding request failed")
		return Result{}, fmt.Errorf("geocoding request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.WithError(err).WithField("address", address).Error("Failed to read response")
		return Result{}, fmt.Errorf("failed to read response: %v", err)
	}

	var raw nominatimResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		g.logger.WithError(err).WithField("address", address).Error("Failed to parse response")
		return Result{}, fmt.Errorf("failed to parse response: %v", err)
	}

	if len(raw) == 0 {
		g.logger.WithField("address", address).Warn("No results found")
		return Result{}, fmt.Errorf("no results found for address: %s", address)
	}

	lat, _ := strconv.ParseFloat(raw[0].Lat, 64)
	lon, _ := strconv.ParseFloat(raw[0].Lon, 64)

	result := Result{
		Latitude:  lat,
		Longitude: lon,
		District:  firstNonEmpty(raw[0].Address.CityDistrict, raw[0].Address.Suburb),
		City:      firstNonEmpty(raw[0].Address.City, raw[0].Address.Town),
		Region:    raw[0].Address.State,
	}

	g.logger.WithFields(logrus.Fields{
		"address":   address,
		"latitude":  lat,
		"longitude": lon,
		"district":  result.District,
		"source":    "nominatim",
	}).Info("Successfully geocoded address")

	g.cacheLock.Lock()
	g.cache[address] = result
	g.cacheLock.Unlock()

	// Save cache periodically
	go g.saveCache()

	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DistanceKm returns the great-circle distance between two points in
// kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.Distance(orb.Point{lon1, lat1}, orb.Point{lon2, lat2}) / 1000
}
