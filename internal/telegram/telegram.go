// Package telegram delivers lot notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lotradar/server/internal/models"
)

type Config struct {
	BotToken  string
	ChatID    string
	IsEnabled bool
}

type Service struct {
	logger *logrus.Logger
	client *http.Client
	config Config
	apiURL string
}

func NewService(config Config, logger *logrus.Logger) *Service {
	return &Service{
		logger: logger,
		config: config,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: "https://api.telegram.org",
	}
}

// Name implements the pipeline notification sink.
func (s *Service) Name() string {
	return "telegram"
}

// Notify formats and delivers one lot analysis.
func (s *Service) Notify(lot *models.Lot, detail models.DedupResult) error {
	return s.SendMessage(FormatLotAnalysis(lot, detail))
}

// SendMessage sends a message to the configured Telegram chat
func (s *Service) SendMessage(message string) error {
	if !s.config.IsEnabled {
		return nil
	}

	if s.config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if s.config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    s.config.ChatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

// FormatLotAnalysis renders the analysis message for one lot.
func FormatLotAnalysis(lot *models.Lot, detail models.DedupResult) string {
	var b strings.Builder

	b.WriteString("🔷 *Лот сегодня*\n\n")
	b.WriteString(fmt.Sprintf("🏢 *Лот:* %s\n", lot.Name))
	b.WriteString(fmt.Sprintf("📍 *Адрес:* %s\n", lot.Address))
	b.WriteString(fmt.Sprintf("🏗️ *Категория:* %s\n\n", lot.DisplayCategory()))

	if detail.PriceChanged {
		b.WriteString(fmt.Sprintf("💱 *Цена изменилась:* %s ₽ → %s ₽\n\n",
			rubles(detail.PreviousPrice), rubles(lot.Price)))
	}

	b.WriteString("📊 *Финансовые показатели*\n")
	b.WriteString(fmt.Sprintf("• *Площадь:* %s м²\n", rubles(lot.Area)))
	b.WriteString(fmt.Sprintf("• *Цена за м² (текущая):* %s ₽\n", rubles(lot.PricePerSqm())))
	b.WriteString(fmt.Sprintf("• *Рыночная цена за м²:* %s ₽\n", rubles(lot.MarketPricePerSqm)))
	b.WriteString(fmt.Sprintf("• *Текущая цена:* %s ₽\n", rubles(lot.Price)))
	b.WriteString(fmt.Sprintf("• *Рыночная оценка:* %s ₽\n", rubles(lot.MarketValue)))
	b.WriteString(fmt.Sprintf("• *ГАП:* %s ₽/мес\n", rubles(lot.MonthlyGap)))
	b.WriteString(fmt.Sprintf("• *Доходность:* %.1f%%\n", lot.AnnualYieldPercent))
	b.WriteString(fmt.Sprintf("• *Капитализация:* %s ₽ (%.1f%%)\n",
		rubles(lot.CapitalizationRub), lot.CapitalizationPercent))

	if lot.MarketPricePerSqm > 0 {
		deviation := (lot.PricePerSqm() - lot.MarketPricePerSqm) / lot.MarketPricePerSqm * 100
		emoji := "📈"
		if deviation < 0 {
			emoji = "📉"
		}
		b.WriteString(fmt.Sprintf("• *Отклонение от рынка:* %s %.1f%%\n\n", emoji, deviation))
	} else {
		b.WriteString("• *Отклонение от рынка:* ❓ Нет данных\n\n")
	}

	b.WriteString("🏛️ *Инфо о торгах*\n")
	b.WriteString(fmt.Sprintf("• *Начальная цена:* %s ₽\n", rubles(lot.Price)))
	b.WriteString(fmt.Sprintf("• *Аукцион:* %s\n", lot.AuctionType))
	b.WriteString(fmt.Sprintf("• *Документ:* %s\n\n", lot.NoticeNumber))

	emoji, text, reason := recommendation(lot)
	b.WriteString(fmt.Sprintf("🧠 *Оценка:* %s %s\n", emoji, text))
	b.WriteString(fmt.Sprintf("💡 *Причина:* %s\n", reason))

	if lot.PlusCount > 0 {
		b.WriteString(fmt.Sprintf("⭐ *Плюсы:* %d/2 (аренда: %s, продажа: %s)\n",
			lot.PlusCount, checkmark(lot.PlusRental), checkmark(lot.PlusSale)))
	}

	if lot.URL != "" {
		b.WriteString(fmt.Sprintf("\n🔗 [Лот на torgi.gov.ru](%s)", lot.URL))
	}

	return b.String()
}

func recommendation(lot *models.Lot) (emoji, text, reason string) {
	switch {
	case lot.PlusCount == 2:
		return "🔥", "идеальный лот!", "Отличные показатели по аренде и продаже"
	case lot.PlusCount == 1 && lot.PlusRental:
		return "✅", "хороший лот", "Высокая доходность аренды"
	case lot.PlusCount == 1:
		return "✅", "хороший лот", "Выгодная цена покупки"
	default:
		return "❌", "НЕ рекомендовано", "Показатели ниже пороговых значений"
	}
}

func checkmark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// rubles renders an amount with thousands separated by spaces, the usual
// Russian convention.
func rubles(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
