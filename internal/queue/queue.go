package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"lotradar/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// OfferQueue is an in-memory queue of offer batches between the scraping
// collector and its consumers (offer store, archive writer).
type OfferQueue struct {
	items    chan []*models.Offer
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func([]*models.Offer) error
}

// NewOfferQueue creates a new offer queue with the specified buffer size
func NewOfferQueue(bufferSize int, logger *logrus.Logger) *OfferQueue {
	return &OfferQueue{
		items:    make(chan []*models.Offer, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]*models.Offer) error, 0),
	}
}

// Push adds a batch of offers to the queue
func (q *OfferQueue) Push(offers []*models.Offer) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- offers:
		q.logger.WithField("batch_size", len(offers)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *OfferQueue) Subscribe(handler func([]*models.Offer) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *OfferQueue) Start() {
	go q.process()
}

func (q *OfferQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *OfferQueue) processBatch(batch []*models.Offer) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *OfferQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of batches in the queue
func (q *OfferQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *OfferQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
