package telegram

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// BotAPI provides a direct Telegram Bot API client for out-of-band sends
// (webhook notifications, cron reports) that run outside a telebot context.
type BotAPI struct {
	token  string
	client *resty.Client
}

// NewBotAPI creates a new direct Telegram Bot API client.
func NewBotAPI(token string) *BotAPI {
	return &BotAPI{
		token:  token,
		client: resty.New().SetBaseURL("https://api.telegram.org/bot" + token),
	}
}

// Call makes a raw API call to the Telegram Bot API.
func (b *BotAPI) Call(method string, params map[string]interface{}) (string, error) {
	resp, err := b.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post("/" + method)
	if err != nil {
		return "", fmt.Errorf("telegram API call %s failed: %w", method, err)
	}
	return resp.String(), nil
}

// SendMessage sends an HTML-formatted text message.
func (b *BotAPI) SendMessage(chatID string, text string) (string, error) {
	return b.Call("sendMessage", map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// SendDocument sends a document from in-memory data.
func (b *BotAPI) SendDocument(chatID string, fileData []byte, filename, caption string) (string, error) {
	resp, err := b.client.R().
		SetFileReader("document", filename, bytes.NewReader(fileData)).
		SetFormData(map[string]string{
			"chat_id":    chatID,
			"caption":    caption,
			"parse_mode": "HTML",
		}).
		Post("/sendDocument")
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}

// SendPhotoBase64 sends a photo from base64 encoded PNG data (QRIS images).
func (b *BotAPI) SendPhotoBase64(chatID string, data string, caption string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	resp, err := b.client.R().
		SetFileReader("photo", "qris.png", bytes.NewReader(decoded)).
		SetFormData(map[string]string{
			"chat_id":    chatID,
			"caption":    caption,
			"parse_mode": "HTML",
		}).
		Post("/sendPhoto")
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}
