// Package scraping runs the external collector script that scrapes auction
// lots from torgi.gov.ru and comparable offers from CIAN, and feeds its
// output into the pipeline.
package scraping

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"lotradar/server/internal/models"
	"lotradar/server/internal/queue"
)

// CollectorManager handles the execution of the Python collector script.
type CollectorManager struct {
	logger     *logrus.Logger
	scriptPath string
	queue      *queue.OfferQueue

	mu   sync.Mutex
	lots []*models.Lot
}

// CollectorParams contains parameters for a collection run
type CollectorParams struct {
	Source   string `json:"source"`    // "torgi", "cian" or "all"
	Region   string `json:"region"`    // e.g., "moscow"
	MaxPages *int   `json:"max_pages"` // optional max pages to scrape
	Resume   bool   `json:"resume"`    // whether to resume from previous state
}

// CollectorMessage represents a message from the Python script
type CollectorMessage struct {
	Type string          `json:"type"` // "lots", "offers", "complete", or "error"
	Data json.RawMessage `json:"data"`
}

// NewCollectorManager creates a new collector manager
func NewCollectorManager(offerQueue *queue.OfferQueue, logger *logrus.Logger) *CollectorManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	scriptPath := filepath.Join("scripts", "run_collector.py")
	absPath, err := filepath.Abs(scriptPath)
	if err != nil {
		logger.WithError(err).Error("Failed to get absolute path to collector script")
	}

	return &CollectorManager{
		logger:     logger,
		scriptPath: absPath,
		queue:      offerQueue,
	}
}

// Run executes the collector with the given parameters. Offers are pushed
// to the queue as they arrive; collected lots are buffered and returned
// once the script exits.
func (m *CollectorManager) Run(params CollectorParams) ([]*models.Lot, error) {
	m.logger.WithFields(logrus.Fields{
		"source":    params.Source,
		"region":    params.Region,
		"max_pages": params.MaxPages,
		"resume":    params.Resume,
	}).Info("Starting collector")

	m.mu.Lock()
	m.lots = nil
	m.mu.Unlock()

	inputData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collector parameters: %w", err)
	}

	cmd := exec.Command("python3", m.scriptPath)
	cmd.Stdin = bytes.NewBuffer(inputData)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start collector: %w", err)
	}

	done := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			m.handleMessage(scanner.Bytes())
		}
		if err := scanner.Err(); err != nil {
			m.logger.WithError(err).Error("Scanner error")
		}
	}()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			m.logger.Error(scanner.Text())
		}
	}()

	go func() {
		done <- cmd.Wait()
	}()

	if err := <-done; err != nil {
		return nil, fmt.Errorf("collector execution failed: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lots, nil
}

func (m *CollectorManager) handleMessage(line []byte) {
	var msg CollectorMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		m.logger.WithError(err).Error("Failed to parse collector message")
		return
	}

	switch msg.Type {
	case "lots":
		var lots []*models.Lot
		if err := json.Unmarshal(msg.Data, &lots); err != nil {
			m.logger.WithError(err).Error("Failed to parse lots")
			return
		}
		m.mu.Lock()
		m.lots = append(m.lots, lots...)
		m.mu.Unlock()
		m.logger.WithField("count", len(lots)).Debug("Collected lot batch")

	case "offers":
		var offers []*models.Offer
		if err := json.Unmarshal(msg.Data, &offers); err != nil {
			m.logger.WithError(err).Error("Failed to parse offers")
			return
		}
		if err := m.queue.Push(offers); err != nil {
			m.logger.WithError(err).Error("Failed to enqueue offers")
		}

	case "complete":
		var complete struct {
			Status      string `json:"status"`
			Message     string `json:"message"`
			TotalLots   int    `json:"total_lots"`
			TotalOffers int    `json:"total_offers"`
		}
		if err := json.Unmarshal(msg.Data, &complete); err != nil {
			m.logger.WithError(err).Error("Failed to parse completion message")
			return
		}
		m.logger.WithFields(logrus.Fields{
			"status":       complete.Status,
			"message":      complete.Message,
			"total_lots":   complete.TotalLots,
			"total_offers": complete.TotalOffers,
		}).Info("Collector completed")

	case "error":
		var errMsg struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(msg.Data, &errMsg); err != nil {
			m.logger.WithError(err).Error("Failed to parse error message")
			return
		}
		m.logger.WithField("message", errMsg.Message).Error("Collector error")
	}
}

// RunFull collects both lots and offers for a region
func (m *CollectorManager) RunFull(region string, maxPages *int) ([]*models.Lot, error) {
	return m.Run(CollectorParams{
		Source:   "all",
		Region:   region,
		MaxPages: maxPages,
	})
}
