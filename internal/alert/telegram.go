package alert

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plannerrun/internal/models"
	"plannerrun/pkg/logger"
)

// TelegramAlerter posts operator notifications to one admin chat.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logger.Logger
}

func NewTelegramAlerter(token string, chatID int64, logger *logger.Logger) (*TelegramAlerter, error) {
	return NewTelegramAlerterWithEndpoint(token, tgbotapi.APIEndpoint, chatID, logger)
}

// NewTelegramAlerterWithEndpoint allows pointing the bot at another Bot API
// server. The endpoint is a format string taking the token and the method.
func NewTelegramAlerterWithEndpoint(token, endpoint string, chatID int64, logger *logger.Logger) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	logger.Infow("Authorized on Telegram", "username", bot.Self.UserName)

	return &TelegramAlerter{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// CustomerPaid announces a reconciled payment.
func (t *TelegramAlerter) CustomerPaid(ctx context.Context, c *models.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, Summary(c))
	sent, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}

	t.logger.Debugw("Sent payment alert", "message_id", sent.MessageID, "user_id", c.ID)
	return nil
}

func Summary(c *models.Customer) string {
	return fmt.Sprintf(
		"💳 Novo pagamento confirmado\n\nID: %d\nEmail: %s\nPlano: %d meses\nNível: %s\nDias/semana: %d\nAltura: %s cm\nPeso: %s kg\nIdade: %d\nObjetivo: %s",
		c.ID, c.Email, c.Meses, c.Nivel, c.Dias,
		strconv.FormatFloat(c.Altura, 'f', -1, 64),
		strconv.FormatFloat(c.Peso, 'f', -1, 64),
		c.Idade, c.Objetivo,
	)
}
