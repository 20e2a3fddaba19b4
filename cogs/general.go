package cogs

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/L1ch7-DMC/dmps-schedule-bot/utils"
)

// General hosts the deck-math helper commands used for deck building
// discussions: opening-hand odds, combo odds and a dice roller.
type General struct{}

func NewGeneral() *General { return &General{} }

const (
	maxDiceCount = 100
	maxDiceSides = 1000
)

// Commands returns the slash commands this cog registers.
func (c *General) Commands() []*discordgo.ApplicationCommand {
	minZero := float64(0)
	minOne := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "draw",
			Description: "Probability of drawing at least N copies of a card in your opening hand",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "deck_size",
					Description: "Total cards in the deck",
					Required:    true,
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "copies",
					Description: "Copies of the card in the deck",
					Required:    true,
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "hand_size",
					Description: "Cards drawn",
					Required:    true,
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "at_least",
					Description: "Minimum copies you want to see (default 1)",
					MinValue:    &minZero,
				},
			},
		},
		{
			Name:        "combo",
			Description: "Probability of opening with at least one copy of every combo piece",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "deck_size",
					Description: "Total cards in the deck",
					Required:    true,
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "hand_size",
					Description: "Cards drawn",
					Required:    true,
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "pieces",
					Description: "Copies of each piece, comma separated (e.g. 3,2,1)",
					Required:    true,
				},
			},
		},
		{
			Name:        "roll",
			Description: "Roll dice in NdM notation (e.g. 2d6)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "dice",
					Description: "Dice to roll, like 1d100 or 3d6",
					Required:    true,
				},
			},
		},
	}
}

// HandleCommand routes a slash command to this cog. Returns false when
// the command is not ours.
func (c *General) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	switch i.ApplicationCommandData().Name {
	case "draw":
		c.handleDraw(s, i)
	case "combo":
		c.handleCombo(s, i)
	case "roll":
		c.handleRoll(s, i)
	default:
		return false
	}
	return true
}

func (c *General) handleDraw(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deckSize, copies, handSize := 0, 0, 0
	atLeast := 1
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "deck_size":
			deckSize = int(opt.IntValue())
		case "copies":
			copies = int(opt.IntValue())
		case "hand_size":
			handSize = int(opt.IntValue())
		case "at_least":
			atLeast = int(opt.IntValue())
		}
	}

	p, err := utils.HypergeometricAtLeast(deckSize, copies, handSize, atLeast)
	if errors.Is(err, utils.ErrArithmeticDomain) {
		respondError(s, i, "Those numbers don't describe a valid deck. Check that copies and hand size fit inside the deck.")
		return
	}
	if err != nil {
		log.Printf("general: draw calculation failed: %v", err)
		respondError(s, i, "The calculation failed. Try again.")
		return
	}

	embed := utils.CreateBrandedEmbed(
		"🃏 Draw Probability",
		fmt.Sprintf("Deck of **%d** with **%d** copies, drawing **%d**:\nP(at least %d) = **%.2f%%**",
			deckSize, copies, handSize, atLeast, p*100),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

func (c *General) handleCombo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deckSize, handSize := 0, 0
	var piecesRaw string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "deck_size":
			deckSize = int(opt.IntValue())
		case "hand_size":
			handSize = int(opt.IntValue())
		case "pieces":
			piecesRaw = opt.StringValue()
		}
	}

	copies, err := parsePieces(piecesRaw)
	if err != nil {
		respondError(s, i, err.Error())
		return
	}

	p, err := utils.ComboAtLeastOneEach(deckSize, handSize, copies)
	if errors.Is(err, utils.ErrArithmeticDomain) {
		respondError(s, i, "Those numbers don't describe a valid deck. Check that all pieces fit inside the deck.")
		return
	}
	if err != nil {
		log.Printf("general: combo calculation failed: %v", err)
		respondError(s, i, "The calculation failed. Try again.")
		return
	}

	embed := utils.CreateBrandedEmbed(
		"🃏 Combo Probability",
		fmt.Sprintf("Deck of **%d**, drawing **%d**, pieces at %v:\nP(one of each) = **%.2f%%**",
			deckSize, handSize, copies, p*100),
		utils.BotColor,
	)
	utils.SendInteractionResponse(s, i, embed, nil, false)
}

// parsePieces turns "3,2,1" into []int{3, 2, 1}.
func parsePieces(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	copies := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("pieces must be numbers separated by commas, like 3,2,1")
		}
		copies = append(copies, n)
	}
	return copies, nil
}

func (c *General) handleRoll(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var notation string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "dice" {
			notation = opt.StringValue()
		}
	}

	count, sides, err := parseDice(notation)
	if err != nil {
		respondError(s, i, err.Error())
		return
	}

	rolls := make([]string, count)
	total := 0
	for r := 0; r < count; r++ {
		v := rand.Intn(sides) + 1
		total += v
		rolls[r] = strconv.Itoa(v)
	}

	description := fmt.Sprintf("🎲 **%s** → %s", notation, strings.Join(rolls, ", "))
	if count > 1 {
		description += fmt.Sprintf("\n**Total:** %d", total)
	}
	utils.SendInteractionResponse(s, i, utils.CreateBrandedEmbed("Dice Roll", description, utils.BotColor), nil, false)
}

// parseDice parses NdM notation with sane limits.
func parseDice(notation string) (count, sides int, err error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(notation)), "d", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("use NdM notation, like 2d6")
	}
	count, err = strconv.Atoi(parts[0])
	if err != nil || count < 1 || count > maxDiceCount {
		return 0, 0, fmt.Errorf("dice count must be between 1 and %d", maxDiceCount)
	}
	sides, err = strconv.Atoi(parts[1])
	if err != nil || sides < 2 || sides > maxDiceSides {
		return 0, 0, fmt.Errorf("dice must have between 2 and %d sides", maxDiceSides)
	}
	return count, sides, nil
}
