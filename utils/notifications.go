package utils

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ChannelNotifier posts plain messages to a fixed Discord channel. It
// satisfies Notifier for the weekly tax summary.
type ChannelNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewChannelNotifier(session *discordgo.Session, channelID string) *ChannelNotifier {
	return &ChannelNotifier{session: session, channelID: channelID}
}

func (n *ChannelNotifier) Notify(_ context.Context, message string) error {
	if n.channelID == "" {
		return nil
	}
	if _, err := n.session.ChannelMessageSend(n.channelID, message); err != nil {
		return fmt.Errorf("failed to post to channel %s: %w", n.channelID, err)
	}
	return nil
}
