package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Resolve 调用 getChat 确认 chat 存在。
func (n *TelegramNotifier) Resolve(ctx context.Context) error {
	status, ok, err := n.call(ctx, "getChat", map[string]string{"chat_id": n.chatID})
	if err != nil {
		return err
	}
	if status == http.StatusBadRequest || status == http.StatusNotFound || (status == http.StatusOK && !ok) {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, n.chatID)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", status)
	}
	return nil
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	status, ok, err := n.call(ctx, "sendMessage", map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", status)
	}
	if !ok {
		return fmt.Errorf("telegram 返回 ok=false")
	}

	n.logger.Info().
		Str("match_id", note.MatchID).
		Str("minute", note.Time).
		Str("rule", note.Rule).
		Msg("告警已发送 (Telegram)")
	return nil
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload map[string]string) (int, bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, false, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	// Telegram always answers JSON; an undecodable body counts as ok so the
	// status code decides.
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		result.OK = true
	}
	return resp.StatusCode, result.OK, nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Resolver = (*TelegramNotifier)(nil)
)
