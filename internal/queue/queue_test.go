package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"lotradar/server/internal/models"
)

func TestNewOfferQueue(t *testing.T) {
	logger := logrus.New()
	q := NewOfferQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestOfferQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewOfferQueue(2, logger)

	// Test successful push
	offers := []*models.Offer{{URL: "test1"}}
	err := q.Push(offers)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	for i := 0; i < 2; i++ {
		offers := []*models.Offer{{URL: "test"}}
		_ = q.Push(offers)
	}
	err = q.Push(offers)
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(offers)
	assert.Equal(t, ErrQueueClosed, err)
}

func TestOfferQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewOfferQueue(10, logger)

	var processed []*models.Offer
	var mu sync.Mutex

	q.Subscribe(func(offers []*models.Offer) error {
		mu.Lock()
		processed = append(processed, offers...)
		mu.Unlock()
		return nil
	})

	q.Start()

	testOffers := []*models.Offer{{URL: "test1"}, {URL: "test2"}}
	err := q.Push(testOffers)
	assert.NoError(t, err)

	// Wait for processing
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, len(processed))
	assert.Equal(t, "test1", processed[0].URL)
	assert.Equal(t, "test2", processed[1].URL)
	mu.Unlock()
}

func TestOfferQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewOfferQueue(10, logger)

	assert.NoError(t, q.Close())
	assert.True(t, q.IsClosed())

	// Close is idempotent
	assert.NoError(t, q.Close())
}
