package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrChannelNotFound 表示目标频道不存在或机器人无权访问。
var ErrChannelNotFound = errors.New("alert channel not found")

// Notification 封装告警上下文。
type Notification struct {
	MatchID  string
	Home     string
	Away     string
	Time     string
	Rule     string
	Fragment string
	// Location is only rendered for possible (in-box) alerts.
	Location string
	Possible bool
	Mention  string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Resolver is implemented by notifiers that must verify their target before
// the first send.
type Resolver interface {
	Resolve(ctx context.Context) error
}

// RenderMessage formats the chat message for a notification.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Possible {
		builder.WriteString("🔔 **POSSIBLE PENALTY!**\n")
	} else {
		builder.WriteString("🔔 **PENALTY ALERT!**\n")
	}
	builder.WriteString(fmt.Sprintf("⚽ **%s vs %s**\n", note.Home, note.Away))
	builder.WriteString(fmt.Sprintf("🕒 **Minute:** %s\n", note.Time))
	builder.WriteString(fmt.Sprintf("🚨 **Event:** %s\n", note.Fragment))
	if note.Possible {
		location := note.Location
		if location == "" {
			location = "N/A"
		}
		builder.WriteString(fmt.Sprintf("📍 **Location:** %s\n", location))
	}
	if note.Mention != "" {
		builder.WriteString(fmt.Sprintf("\n||%s||", note.Mention))
	}
	return builder.String()
}
