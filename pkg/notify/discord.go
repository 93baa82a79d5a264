package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// messageSender is the subset of *discordgo.Session used for delivery.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts changes to a Discord channel.
type DiscordNotifier struct {
	sender    messageSender
	channelID string
}

// NewDiscordNotifier creates a notifier authenticated with a bot token.
func NewDiscordNotifier(botToken, channelID string) (*DiscordNotifier, error) {
	if botToken == "" || channelID == "" {
		return nil, fmt.Errorf("discord bot token and channel ID are required")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordNotifier{sender: session, channelID: channelID}, nil
}

// Notify sends change as a channel message.
func (n *DiscordNotifier) Notify(ctx context.Context, change ledger.Change) error {
	_, err := n.sender.ChannelMessageSend(n.channelID, Message(change), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}
