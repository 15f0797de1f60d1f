package chat

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/trivia-tender/game"
	"github.com/onnwee/trivia-tender/twitchapi"
)

// Bot connects to Twitch IRC, routes chat messages into the game scheduler,
// and serves as the scheduler's output sink for announcements.
type Bot struct {
	client    *twitch.Client
	scheduler *game.Scheduler
	helix     *twitchapi.HelixClient
	channels  []string

	mu         sync.RWMutex
	channelIDs map[string]string
}

// NewBot builds a Bot for the given channels. The oauth token must carry
// chat:read and chat:edit scopes. helix may be nil; channel IDs then fall
// back to the IRC room id tag.
func NewBot(username, oauth string, channels []string, scheduler *game.Scheduler, helix *twitchapi.HelixClient) *Bot {
	b := &Bot{
		client:     twitch.NewClient(username, oauth),
		scheduler:  scheduler,
		helix:      helix,
		channels:   channels,
		channelIDs: make(map[string]string),
	}
	b.client.OnPrivateMessage(b.handleMessage)
	return b
}

// Send implements game.OutputSink.
func (b *Bot) Send(_ context.Context, channel, message string) error {
	b.client.Say(channel, message)
	return nil
}

// Start resolves channel IDs, joins the configured channels, and blocks until
// the connection closes or ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	for _, ch := range b.channels {
		id := b.resolveChannelID(ctx, ch)
		if id != "" {
			b.mu.Lock()
			b.channelIDs[ch] = id
			b.mu.Unlock()
		}
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		b.client.Disconnect()
		close(done)
	}()

	b.client.Join(b.channels...)
	err := b.client.Connect()
	<-done
	return err
}

func (b *Bot) resolveChannelID(ctx context.Context, channel string) string {
	if b.helix == nil {
		return ""
	}
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	id, err := b.helix.GetUserID(ctx2, channel)
	if err != nil {
		slog.Warn("channel id lookup failed", slog.String("component", "chat"), slog.String("channel", channel), slog.Any("err", err))
		return ""
	}
	return id
}

func (b *Bot) channelID(channel, roomID string) string {
	b.mu.RLock()
	id := b.channelIDs[channel]
	b.mu.RUnlock()
	if id != "" {
		return id
	}
	if roomID != "" {
		b.mu.Lock()
		b.channelIDs[channel] = roomID
		b.mu.Unlock()
	}
	return roomID
}

func (b *Bot) handleMessage(msg twitch.PrivateMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channel := strings.ToLower(msg.Channel)
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return
	}

	if strings.HasPrefix(strings.ToLower(text), "!trivia") {
		b.handleCommand(ctx, channel, msg, text)
		return
	}

	// Anything else is a candidate answer while a game is live on the channel.
	if b.scheduler.Active(channel) == nil {
		return
	}
	if err := b.scheduler.SubmitAnswer(ctx, channel, msg.User.ID, msg.User.Name, text); err != nil {
		slog.Debug("answer not accepted", slog.String("component", "chat"), slog.String("channel", channel), slog.Any("err", err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, channel string, msg twitch.PrivateMessage, text string) {
	fields := strings.Fields(text)
	arg := ""
	if len(fields) > 1 {
		arg = strings.ToLower(fields[1])
	}

	switch arg {
	case "clear", "stop":
		if !isPrivileged(msg) {
			return
		}
		dropped := b.scheduler.ClearChannel(channel)
		slog.Info("queue cleared from chat", slog.String("component", "chat"), slog.String("channel", channel), slog.Int("dropped", dropped))
		return
	}

	if !isPrivileged(msg) {
		return
	}
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return
		}
		n = v
	}

	req := game.NewRequest(channel, b.channelID(channel, msg.RoomID), msg.User.ID, n)
	res, err := b.scheduler.Submit(ctx, req)
	if err != nil {
		slog.Warn("trivia request rejected", slog.String("component", "chat"), slog.String("channel", channel), slog.Any("err", err))
		return
	}
	slog.Info("trivia requested",
		slog.String("component", "chat"),
		slog.String("channel", channel),
		slog.String("user", msg.User.Name),
		slog.Int("requested", n),
		slog.Int("queued", res.AmountAdded))
}

// isPrivileged reports whether the sender may start or clear games on the
// channel: the broadcaster or a moderator.
func isPrivileged(msg twitch.PrivateMessage) bool {
	if msg.User.Badges["broadcaster"] > 0 {
		return true
	}
	return msg.User.Badges["moderator"] > 0
}
