package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

type discordSession interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts alerts to one Discord text channel through the REST API.
type DiscordNotifier struct {
	session   discordSession
	channelID string
	logger    zerolog.Logger
}

// NewDiscordNotifier 构造 Discord 告警器。
func NewDiscordNotifier(token, channelID string, timeout time.Duration, logger zerolog.Logger) (*DiscordNotifier, error) {
	if token == "" {
		return nil, errors.New("discord token not configured")
	}
	if channelID == "" {
		return nil, errors.New("discord channel id not configured")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if timeout > 0 {
		session.Client = &http.Client{Timeout: timeout}
	}
	return newDiscordNotifier(session, channelID, logger), nil
}

func newDiscordNotifier(session discordSession, channelID string, logger zerolog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		logger:    logger.With().Str("component", "alert_discord").Str("channel_id", channelID).Logger(),
	}
}

// Resolve looks the channel up once at startup.
func (n *DiscordNotifier) Resolve(ctx context.Context) error {
	ch, err := n.session.Channel(n.channelID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownChannel(err) {
			return fmt.Errorf("%w: %s", ErrChannelNotFound, n.channelID)
		}
		return fmt.Errorf("resolve discord channel: %w", err)
	}
	if ch == nil {
		return fmt.Errorf("%w: %s", ErrChannelNotFound, n.channelID)
	}
	n.logger.Info().Str("channel", ch.Name).Msg("Discord 频道已就绪")
	return nil
}

// Notify 发送渲染后的消息。
func (n *DiscordNotifier) Notify(ctx context.Context, note Notification) error {
	if _, err := n.session.ChannelMessageSend(n.channelID, RenderMessage(note), discordgo.WithContext(ctx)); err != nil {
		if isUnknownChannel(err) {
			return fmt.Errorf("%w: %s", ErrChannelNotFound, n.channelID)
		}
		return fmt.Errorf("send discord message: %w", err)
	}

	n.logger.Info().
		Str("match_id", note.MatchID).
		Str("minute", note.Time).
		Str("rule", note.Rule).
		Msg("告警已发送 (Discord)")
	return nil
}

func isUnknownChannel(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

var (
	_ Notifier = (*DiscordNotifier)(nil)
	_ Resolver = (*DiscordNotifier)(nil)
)
