package telegram

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotradar/server/internal/models"
)

func approvedLot() *models.Lot {
	return &models.Lot{
		NoticeNumber:          "22000000000000000001",
		Name:                  "Нежилое помещение",
		URL:                   "https://torgi.gov.ru/new/public/lots/lot/1",
		Address:               "г. Москва, ул Тверская, д 1",
		District:              "Тверской",
		Area:                  150,
		Price:                 5000000,
		AuctionType:           "Аукцион",
		MarketPricePerSqm:     40000,
		MarketValue:           6000000,
		CapitalizationRub:     1000000,
		CapitalizationPercent: 20,
		MonthlyGap:            42000,
		AnnualYieldPercent:    10.08,
		Method:                models.MethodSales,
		PlusSale:              true,
		PlusRental:            true,
		PlusCount:             2,
		Status:                models.StatusApproved,
	}
}

func TestFormatLotAnalysis(t *testing.T) {
	msg := FormatLotAnalysis(approvedLot(), models.DedupResult{})

	assert.Contains(t, msg, "Нежилое помещение")
	assert.Contains(t, msg, "г. Москва, ул Тверская, д 1")
	assert.Contains(t, msg, "5 000 000 ₽")
	assert.Contains(t, msg, "6 000 000 ₽")
	assert.Contains(t, msg, "42 000 ₽/мес")
	assert.Contains(t, msg, "10.1%")
	assert.Contains(t, msg, "идеальный лот")
	assert.Contains(t, msg, "Плюсы:* 2/2")
	assert.Contains(t, msg, "torgi.gov.ru")
	assert.NotContains(t, msg, "Цена изменилась")
}

func TestFormatLotAnalysisPriceChange(t *testing.T) {
	msg := FormatLotAnalysis(approvedLot(), models.DedupResult{
		PriceChanged:  true,
		PreviousPrice: 4800000,
	})

	assert.Contains(t, msg, "Цена изменилась")
	assert.Contains(t, msg, "4 800 000 ₽")
}

func TestFormatLotAnalysisDiscard(t *testing.T) {
	lot := &models.Lot{
		Name:    "Гараж",
		Address: "г. Москва",
		Area:    20,
		Price:   500000,
		Status:  models.StatusDiscard,
	}

	msg := FormatLotAnalysis(lot, models.DedupResult{})

	assert.Contains(t, msg, "НЕ рекомендовано")
	assert.Contains(t, msg, "Нет данных")
	assert.NotContains(t, msg, "Плюсы")
}

func TestSendMessageDisabledIsNoop(t *testing.T) {
	s := NewService(Config{IsEnabled: false}, logrus.New())
	assert.NoError(t, s.SendMessage("hello"))
}

func TestSendMessageMissingToken(t *testing.T) {
	s := NewService(Config{IsEnabled: true, ChatID: "1"}, logrus.New())
	assert.Error(t, s.SendMessage("hello"))
}

func TestSendMessagePostsPayload(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/bottoken/sendMessage")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewService(Config{IsEnabled: true, BotToken: "token", ChatID: "42"}, logrus.New())
	s.apiURL = server.URL

	require.NoError(t, s.SendMessage("привет"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "привет", got["text"])
}

func TestSendMessageUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := NewService(Config{IsEnabled: true, BotToken: "bad", ChatID: "42"}, logrus.New())
	s.apiURL = server.URL

	err := s.SendMessage("привет")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bot token")
}

func TestRubles(t *testing.T) {
	assert.Equal(t, "0", rubles(0))
	assert.Equal(t, "999", rubles(999))
	assert.Equal(t, "1 000", rubles(1000))
	assert.Equal(t, "5 000 000", rubles(5000000))
	assert.Equal(t, "-1 200", rubles(-1200))
}
