// Package cogs binds the economy and game logic to Discord slash
// commands and message components.
package cogs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/L1ch7-DMC/dmps-schedule-bot/games/gacha"
	"github.com/L1ch7-DMC/dmps-schedule-bot/games/slots"
	"github.com/L1ch7-DMC/dmps-schedule-bot/utils"
)

// Economy exposes the credit economy: balance, daily bonus, gifts,
// leaderboard, gacha draws and the interactive slot machine.
type Economy struct {
	Ledger *utils.Ledger
	Gacha  *gacha.Table
	Slots  *slots.Registry
	Tax    *utils.TaxEngine
}

func NewEconomy(ledger *utils.Ledger, table *gacha.Table, registry *slots.Registry, tax *utils.TaxEngine) *Economy {
	return &Economy{Ledger: ledger, Gacha: table, Slots: registry, Tax: tax}
}

var adminPermission int64 = discordgo.PermissionAdministrator

// Commands returns the slash commands this cog registers.
func (c *Economy) Commands() []*discordgo.ApplicationCommand {
	minOne := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: fmt.Sprintf("Check your current %s balance", utils.CreditName),
		},
		{
			Name:        "daily",
			Description: fmt.Sprintf("Claim your daily %d %s bonus", utils.DailyReward, utils.CreditName),
		},
		{
			Name:        "gift",
			Description: fmt.Sprintf("Gift %s to another member", utils.CreditName),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Who to send the gift to",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How much to send",
					Required:    true,
					MinValue:    &minOne,
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: fmt.Sprintf("Show the top %d richest members", utils.LeaderboardTop),
		},
		{
			Name:        "gacha",
			Description: fmt.Sprintf("Draw the gacha (%d %s per pull)", utils.GachaCostPerPull, utils.CreditName),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: fmt.Sprintf("Number of pulls (1-%d)", utils.GachaMaxPulls),
					MinValue:    &minOne,
					MaxValue:    float64(utils.GachaMaxPulls),
				},
			},
		},
		{
			Name:        "slot",
			Description: "Play the slot machine",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "bet",
					Description: "How much to bet",
					Required:    true,
					MinValue:    &minOne,
				},
			},
		},
		{
			Name:                     "admin_credit",
			Description:              "Admin credit management",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				creditSubcommand("set", "Set a member's balance to an exact amount"),
				creditSubcommand("add", "Add credits to a member's balance"),
				creditSubcommand("remove", "Remove credits from a member's balance"),
			},
		},
		{
			Name:                     "run_weekly_tax",
			Description:              "Run the weekly income tax collection now",
			DefaultMemberPermissions: &adminPermission,
		},
	}
}

func creditSubcommand(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "Target member",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "Amount of credits",
				Required:    true,
			},
		},
	}
}

// HandleCommand routes a slash command to this cog. Returns false when
// the command is not ours.
func (c *Economy) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	switch i.ApplicationCommandData().Name {
	case "balance":
		c.handleBalance(s, i)
	case "daily":
		c.handleDaily(s, i)
	case "gift":
		c.handleGift(s, i)
	case "leaderboard":
		c.handleLeaderboard(s, i)
	case "gacha":
		c.handleGacha(s, i)
	case "slot":
		c.handleSlot(s, i)
	case "admin_credit":
		c.handleCredit(s, i)
	case "run_weekly_tax":
		c.handleRunWeeklyTax(s, i)
	default:
		return false
	}
	return true
}

// HandleComponent routes a button click to this cog. Returns false when
// the component is not ours.
func (c *Economy) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, "slot_stop:") {
		return false
	}
	c.handleSlotStop(s, i, customID)
	return true
}

func (c *Economy) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := utils.InteractionUser(i)
	userID, err := utils.ParseUserID(user.ID)
	if err != nil {
		respondError(s, i, "Could not resolve your account.")
		return
	}
	balance, err := c.Ledger.GetBalance(context.Background(), userID)
	if err != nil {
		log.Printf("economy: balance lookup for %d failed: %v", userID, err)
		respondError(s, i, "The vault is unreachable right now. Try again later.")
		return
	}
	embed := utils.CreateBrandedEmbed(
		fmt.Sprintf("💰 %s's Balance", user.Username),
		fmt.Sprintf("You currently have **%s** %s.", utils.FormatCredits(balance), utils.CreditName),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

func (c *Economy) handleDaily(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := utils.InteractionUser(i)
	userID, err := utils.ParseUserID(user.ID)
	if err != nil {
		respondError(s, i, "Could not resolve your account.")
		return
	}
	res, err := c.Ledger.ClaimDaily(context.Background(), userID)
	if err != nil {
		log.Printf("economy: daily claim for %d failed: %v", userID, err)
		respondError(s, i, "The vault is unreachable right now. Try again later.")
		return
	}
	if !res.Granted {
		embed := utils.CreateBrandedEmbed(
			"Daily Bonus Already Claimed",
			fmt.Sprintf("You already claimed today's bonus. Come back <t:%d:R>.", res.NextEligibleAt.Unix()),
			0xF39C12,
		)
		utils.SendInteractionResponse(s, i, embed, nil, true)
		return
	}
	embed := utils.CreateBrandedEmbed(
		"Daily Bonus",
		fmt.Sprintf("You received **%d** %s!\n**New balance:** %s %s",
			utils.DailyReward, utils.CreditName,
			utils.FormatCredits(res.NewBalance), utils.CreditName),
		0x2ECC71,
	)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

func (c *Economy) handleGift(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := utils.InteractionUser(i)
	fromID, err := utils.ParseUserID(user.ID)
	if err != nil {
		respondError(s, i, "Could not resolve your account.")
		return
	}

	var target *discordgo.User
	var amount int64
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "member":
			target = opt.UserValue(s)
		case "amount":
			amount = opt.IntValue()
		}
	}
	if target == nil {
		respondError(s, i, "You need to pick a member to gift to.")
		return
	}
	if target.Bot {
		respondError(s, i, "Bots have no use for "+utils.CreditName+".")
		return
	}
	toID, err := utils.ParseUserID(target.ID)
	if err != nil {
		respondError(s, i, "Could not resolve the target account.")
		return
	}

	newBalance, err := c.Ledger.Transfer(context.Background(), fromID, toID, amount)
	switch {
	case errors.Is(err, utils.ErrInsufficientFunds):
		balance, _ := c.Ledger.GetBalance(context.Background(), fromID)
		utils.SendInteractionResponse(s, i, utils.InsufficientCreditsEmbed(amount, balance), nil, true)
		return
	case errors.Is(err, utils.ErrInvalidTarget):
		respondError(s, i, "You can't gift to that account.")
		return
	case err != nil:
		log.Printf("economy: gift %d -> %d of %d failed: %v", fromID, toID, amount, err)
		respondError(s, i, "The gift could not be delivered. Nothing was charged.")
		return
	}

	embed := utils.CreateBrandedEmbed(
		"🎁 Gift Sent",
		fmt.Sprintf("%s sent **%s** %s to %s!\n**Your balance:** %s %s",
			user.Mention(), utils.FormatCredits(amount), utils.CreditName, target.Mention(),
			utils.FormatCredits(newBalance), utils.CreditName),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

func (c *Economy) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	top, err := c.Ledger.Leaderboard(context.Background())
	if err != nil {
		log.Printf("economy: leaderboard failed: %v", err)
		respondError(s, i, "The vault is unreachable right now. Try again later.")
		return
	}
	if len(top) == 0 {
		utils.SendInteractionResponse(s, i,
			utils.CreateBrandedEmbed("🏆 Leaderboard", "Nobody has any "+utils.CreditName+" yet.", utils.BotColor),
			nil, false)
		return
	}

	medals := []string{"🥇", "🥈", "🥉"}
	var b strings.Builder
	for pos, acct := range top {
		rank := fmt.Sprintf("**%d.**", pos+1)
		if pos < len(medals) {
			rank = medals[pos]
		}
		fmt.Fprintf(&b, "%s <@%d> — %s %s\n", rank, acct.ID, utils.FormatCredits(acct.Balance), utils.CreditName)
	}
	embed := utils.CreateBrandedEmbed("🏆 "+utils.CreditName+" Leaderboard", b.String(), utils.BotColor)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

func (c *Economy) handleGacha(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := utils.InteractionUser(i)
	userID, err := utils.ParseUserID(user.ID)
	if err != nil {
		respondError(s, i, "Could not resolve your account.")
		return
	}

	count := 1
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "count" {
			count = int(opt.IntValue())
		}
	}
	if count < 1 || count > utils.GachaMaxPulls {
		respondError(s, i, fmt.Sprintf("Pull count must be between 1 and %d.", utils.GachaMaxPulls))
		return
	}

	res, err := c.Gacha.DrawBatch(context.Background(), userID, count, utils.GachaCostPerPull)
	switch {
	case errors.Is(err, utils.ErrInsufficientFunds):
		balance, _ := c.Ledger.GetBalance(context.Background(), userID)
		required := int64(count) * utils.GachaCostPerPull
		utils.SendInteractionResponse(s, i, utils.InsufficientCreditsEmbed(required, balance), nil, true)
		return
	case err != nil:
		log.Printf("economy: gacha draw for %d failed: %v", userID, err)
		respondError(s, i, "The gacha machine jammed. Your "+utils.CreditName+" were returned.")
		return
	}

	var b strings.Builder
	for _, prize := range res.Prizes {
		fmt.Fprintf(&b, "**[%s]** %s\n", prize.Rarity, prize.Message)
	}
	fmt.Fprintf(&b, "\n**Balance:** %s %s", utils.FormatCredits(res.NewBalance), utils.CreditName)
	embed := utils.CreateBrandedEmbed(
		fmt.Sprintf("🎰 Gacha Results (%d pull(s))", count),
		b.String(),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

func (c *Economy) handleSlot(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := utils.InteractionUser(i)
	userID, err := utils.ParseUserID(user.ID)
	if err != nil {
		respondError(s, i, "Could not resolve your account.")
		return
	}

	var bet int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "bet" {
			bet = opt.IntValue()
		}
	}

	presenter := &slotPresenter{session: s, interaction: i}
	snap, err := c.Slots.PlaceBet(context.Background(), i.ChannelID, userID, bet, presenter)
	switch {
	case errors.Is(err, utils.ErrInsufficientFunds):
		balance, _ := c.Ledger.GetBalance(context.Background(), userID)
		utils.SendInteractionResponse(s, i, utils.InsufficientCreditsEmbed(bet, balance), nil, true)
		return
	case errors.Is(err, utils.ErrValidation):
		respondError(s, i, "Your bet must be at least 1.")
		return
	case err != nil:
		log.Printf("economy: slot bet for %d failed: %v", userID, err)
		respondError(s, i, "The slot machine is out of order. Nothing was charged.")
		return
	}

	utils.SendInteractionResponse(s, i, slotEmbed(snap), slotComponents(snap), false)
}

func (c *Economy) handleSlotStop(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		utils.AcknowledgeComponentInteraction(s, i)
		return
	}
	sessionID := parts[1]
	reel, err := strconv.Atoi(parts[2])
	if err != nil {
		utils.AcknowledgeComponentInteraction(s, i)
		return
	}
	requesterID, err := utils.ParseUserID(utils.InteractionUser(i).ID)
	if err != nil {
		utils.AcknowledgeComponentInteraction(s, i)
		return
	}

	snap, err := c.Slots.Stop(context.Background(), sessionID, reel, requesterID)
	switch {
	case errors.Is(err, utils.ErrNotSessionOwner):
		respondEphemeral(s, i, "This isn't your game!")
		return
	case errors.Is(err, utils.ErrSessionTimedOut):
		respondEphemeral(s, i, "That game already timed out.")
		return
	case errors.Is(err, utils.ErrSessionNotActive):
		// Stale click on an old frame; nothing to do.
		utils.AcknowledgeComponentInteraction(s, i)
		return
	case err != nil:
		log.Printf("economy: slot stop on %s failed: %v", sessionID, err)
		respondEphemeral(s, i, "Something went wrong. Your bet was refunded.")
		return
	}

	utils.UpdateComponentInteraction(s, i, slotEmbed(snap), slotComponents(snap))
}

func (c *Economy) handleCredit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondError(s, i, "Pick a subcommand: set, add or remove.")
		return
	}
	sub := data.Options[0]

	var target *discordgo.User
	var amount int64
	for _, opt := range sub.Options {
		switch opt.Name {
		case "member":
			target = opt.UserValue(s)
		case "amount":
			amount = opt.IntValue()
		}
	}
	if target == nil {
		respondError(s, i, "You need to pick a member.")
		return
	}
	targetID, err := utils.ParseUserID(target.ID)
	if err != nil {
		respondError(s, i, "Could not resolve the target account.")
		return
	}

	ctx := context.Background()
	var newBalance int64
	switch sub.Name {
	case "set":
		newBalance, err = c.Ledger.SetBalance(ctx, targetID, amount)
	case "add":
		newBalance, err = c.Ledger.Adjust(ctx, targetID, amount)
	case "remove":
		newBalance, err = c.Ledger.Adjust(ctx, targetID, -amount)
	default:
		respondError(s, i, "Unknown subcommand.")
		return
	}
	switch {
	case errors.Is(err, utils.ErrInsufficientFunds):
		respondError(s, i, fmt.Sprintf("%s doesn't have that many %s to remove.", target.Username, utils.CreditName))
		return
	case errors.Is(err, utils.ErrValidation):
		respondError(s, i, "Balances cannot be negative.")
		return
	case err != nil:
		log.Printf("economy: admin credit %s for %d failed: %v", sub.Name, targetID, err)
		respondError(s, i, "The vault is unreachable right now. Try again later.")
		return
	}

	embed := utils.CreateBrandedEmbed(
		"Credits Updated",
		fmt.Sprintf("%s's balance is now **%s** %s.",
			target.Mention(), utils.FormatCredits(newBalance), utils.CreditName),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, true)
}

func (c *Economy) handleRunWeeklyTax(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if c.Tax == nil {
		respondError(s, i, "Tax collection is not configured.")
		return
	}
	summary, err := c.Tax.Collect(context.Background())
	if err != nil {
		log.Printf("economy: manual tax run failed: %v", err)
		respondError(s, i, "Tax collection failed. Check the logs.")
		return
	}
	embed := utils.CreateBrandedEmbed(
		"Income Tax Collected",
		fmt.Sprintf("Taxed **%d** member(s) for a total of **%s** %s.",
			summary.UsersTaxed, utils.FormatCredits(summary.TotalCollected), utils.CreditName),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, true)
}

// slotPresenter pushes async slot frames (animation ticks, timeouts)
// back onto the original slash command message.
type slotPresenter struct {
	session     *discordgo.Session
	interaction *discordgo.InteractionCreate
}

func (p *slotPresenter) Present(snap *slots.Snapshot) {
	if err := utils.EditOriginalInteraction(p.session, p.interaction, slotEmbed(snap), slotComponents(snap)); err != nil {
		log.Printf("economy: slot frame update failed: %v", err)
	}
}

func slotEmbed(snap *slots.Snapshot) *discordgo.MessageEmbed {
	reels := strings.Join(snap.Reels[:], " | ")
	switch snap.Status {
	case slots.StatusResolved:
		if snap.Payout > 0 {
			return utils.CreateBrandedEmbed(
				"🎰 Slot Machine",
				fmt.Sprintf("**%s**\n\nYou won **%s** %s!\n**Balance:** %s %s",
					reels,
					utils.FormatCredits(snap.Payout), utils.CreditName,
					utils.FormatCredits(snap.NewBalance), utils.CreditName),
				0xFFD700, // Gold
			)
		}
		return utils.CreateBrandedEmbed(
			"🎰 Slot Machine",
			fmt.Sprintf("**%s**\n\nNo match. You lost **%s** %s.\n**Balance:** %s %s",
				reels,
				utils.FormatCredits(snap.Bet), utils.CreditName,
				utils.FormatCredits(snap.NewBalance), utils.CreditName),
			0xFF0000, // Red
		)
	case slots.StatusTimedOut:
		return utils.GameTimeoutEmbed(snap.Bet)
	default:
		return utils.CreateBrandedEmbed(
			"🎰 Slot Machine",
			fmt.Sprintf("**%s**\n\nBet: %s %s\nPress **STOP %d** to lock the reel!",
				reels,
				utils.FormatCredits(snap.Bet), utils.CreditName,
				snap.ActiveReel+1),
			0x1E5631, // Casino Green
		)
	}
}

func slotComponents(snap *slots.Snapshot) []discordgo.MessageComponent {
	if snap.Status != slots.StatusSpinning {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, utils.SlotReelCount)
	for reel := 0; reel < utils.SlotReelCount; reel++ {
		buttons = append(buttons, utils.CreateButton(
			fmt.Sprintf("slot_stop:%s:%d", snap.ID, reel),
			fmt.Sprintf("STOP %d", reel+1),
			discordgo.DangerButton,
			reel != snap.ActiveReel,
			nil,
		))
	}
	return []discordgo.MessageComponent{utils.CreateActionRow(buttons...)}
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	if err := utils.SendInteractionResponse(s, i, utils.ErrorEmbed(message), nil, true); err != nil {
		log.Printf("economy: failed to send error response: %v", err)
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("economy: failed to send ephemeral response: %v", err)
	}
}
