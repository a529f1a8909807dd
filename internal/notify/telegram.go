package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/infodancer/smtp2tg/internal/render"
)

// errResponseNotOK means the Bot API answered but refused the request.
var errResponseNotOK = errors.New("telegram response not ok")

// sendMessageRequest is the JSON body of a sendMessage call.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// apiResponse is the envelope the Bot API wraps every reply in.
type apiResponse struct {
	Ok          bool         `json:"ok"`
	Description string       `json:"description,omitempty"`
	Result      *sentMessage `json:"result,omitempty"`
}

// sentMessage identifies the message created by a sendMessage call.
// https://core.telegram.org/bots/api#message
type sentMessage struct {
	MessageID json.Number `json:"message_id"`
}

// Telegram implements Notifier using the Telegram Bot API.
type Telegram struct {
	apiURL     string
	token      string
	chatID     string
	httpClient *http.Client
}

// NewTelegram creates a notifier that posts to the Bot API at apiURL.
func NewTelegram(apiURL string, token string, chatID string, timeout time.Duration) *Telegram {
	return &Telegram{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		token:  token,
		chatID: chatID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the name of this notifier.
func (t *Telegram) Name() string {
	return "telegram"
}

// Send posts the message to the sendMessage method of the Bot API.
// The bot token is redacted from any returned error.
func (t *Telegram) Send(ctx context.Context, msg render.Message) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      msg.Text,
		ParseMode: msg.Dialect.String(),
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %s", t.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %s", t.redact(err.Error()))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return t.checkResponse(resp)
}

// Ping calls the getMe method to verify the token and API reachability.
func (t *Telegram) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL("getMe"), nil)
	if err != nil {
		return fmt.Errorf("creating request: %s", t.redact(err.Error()))
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %s", t.redact(err.Error()))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return t.checkResponse(resp)
}

// methodURL builds the URL for a Bot API method call.
func (t *Telegram) methodURL(method string) string {
	return t.apiURL + "/bot" + t.token + "/" + method
}

// checkResponse reports an error for a non-2xx status or an ok:false body.
func (t *Telegram) checkResponse(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, t.redact(string(body)))
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("%w: %s", errResponseNotOK, t.redact(result.Description))
	}

	return nil
}

// redact replaces the bot token wherever it appears in s.
func (t *Telegram) redact(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "***")
}

// Ensure Telegram implements Notifier
var _ Notifier = (*Telegram)(nil)
