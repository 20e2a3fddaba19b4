package utils

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

// CreateBrandedEmbed creates a basic embed with bot branding
func CreateBrandedEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "DMPS Schedule Bot",
		},
	}
}

// InsufficientCreditsEmbed creates an embed for a rejected charge
func InsufficientCreditsEmbed(required, currentBalance int64) *discordgo.MessageEmbed {
	return CreateBrandedEmbed(
		"Not Enough "+CreditName,
		fmt.Sprintf("You don't have enough %s.\n**Your balance:** %s %s\n**Required:** %s %s",
			CreditName,
			FormatCredits(currentBalance), CreditName,
			FormatCredits(required), CreditName),
		0xFF0000, // Red color
	)
}

// ErrorEmbed creates a generic error embed
func ErrorEmbed(message string) *discordgo.MessageEmbed {
	return CreateBrandedEmbed("Error", message, 0xFF0000)
}

// GameTimeoutEmbed creates an embed for a forfeited game
func GameTimeoutEmbed(betAmount int64) *discordgo.MessageEmbed {
	return CreateBrandedEmbed(
		"⏰ Game Timeout",
		fmt.Sprintf("The game timed out after %d seconds of inactivity. Your bet of %s %s was forfeited.",
			int(SlotIdleTimeout.Seconds()), FormatCredits(betAmount), CreditName),
		0xF39C12, // Orange color
	)
}

// FormatCredits formats a credit amount with thousands separators
func FormatCredits(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	start := 0
	if amount < 0 {
		start = 1
	}
	for i := len(s) - 3; i > start; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
