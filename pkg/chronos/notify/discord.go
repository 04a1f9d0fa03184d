package notify

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// DiscordSink posts a one-line embed to a fixed channel on task events.
// It only needs fire-and-forget outbound messages, so it opens a REST
// session and never starts the gateway connection a full bidirectional
// bot would require.
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// NewDiscordSink opens a bot-token session for sending only; it never
// calls Open() on the session, since REST calls don't require the
// gateway connection the full channel implementation maintains.
func NewDiscordSink(token, channelID string, logger *slog.Logger) (*DiscordSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordSink{session: session, channelID: channelID, logger: logger}, nil
}

func (d *DiscordSink) Notify(task *chronos.ScheduledTask, execution *chronos.TaskExecution, event chronos.NotificationEvent) {
	embed := &discordgo.MessageEmbed{
		Title:       task.Name,
		Description: fmt.Sprintf("execution `%s` — %s", execution.ID, event),
		Color:       colorFor(event),
	}
	if execution.Error != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "error", Value: *execution.Error,
		})
	}

	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		d.logger.Warn("discord: send failed", "task", task.ID, "error", err)
	}
}

func colorFor(event chronos.NotificationEvent) int {
	switch event {
	case chronos.EventComplete:
		return 0x2ecc71
	case chronos.EventError:
		return 0xe74c3c
	default:
		return 0x3498db
	}
}
