package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/L1ch7-DMC/dmps-schedule-bot/cogs"
	"github.com/L1ch7-DMC/dmps-schedule-bot/games/gacha"
	"github.com/L1ch7-DMC/dmps-schedule-bot/games/slots"
	"github.com/L1ch7-DMC/dmps-schedule-bot/utils"
)

var botStatus = "starting"

func main() {
	// .env is optional; real deployments inject the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Start HTTP server for hosting platform health checks
	go startHealthServer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := utils.LoadEconomyConfig(os.Getenv("ECONOMY_CONFIG"))
	if err != nil {
		log.Fatalf("Invalid economy config: %v", err)
	}

	store, err := utils.SetupDatabase(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Printf("Database setup failed: %v", err)
		log.Println("Falling back to in-memory balances (non-persistent)")
		store = utils.NewMemoryStore()
	}
	defer store.Close()

	ledger := utils.NewLedger(store)
	gachaTable := gacha.NewTable(cfg.GachaTiers, ledger)
	slotRegistry := slots.NewRegistry(ledger)
	defer slotRegistry.Close()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Println("BOT_TOKEN not set - Discord bot will not connect")
		botStatus = "no_token"
		// Keep HTTP server running
		select {}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Weekly income tax, announced to the configured channel.
	notifier := utils.NewChannelNotifier(session, os.Getenv("TAX_CHANNEL_ID"))
	taxEngine := utils.NewTaxEngine(ledger, cfg.TaxBrackets, notifier)

	economy := cogs.NewEconomy(ledger, gachaTable, slotRegistry, taxEngine)
	general := cogs.NewGeneral()

	session.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		log.Printf("Logged in as %s (ID: %s)", event.User.Username, event.User.ID)
		botStatus = "online"
		if err := registerSlashCommands(s, economy, general); err != nil {
			log.Printf("Failed to register slash commands: %v", err)
		}
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			if economy.HandleCommand(s, i) {
				return
			}
			general.HandleCommand(s, i)
		case discordgo.InteractionMessageComponent:
			economy.HandleComponent(s, i)
		}
	})

	if err := session.Open(); err != nil {
		log.Fatalf("Failed to open Discord connection: %v", err)
	}
	defer session.Close()

	go taxEngine.RunWeekly(ctx)

	log.Println("Bot is now running. Press CTRL+C to exit.")
	botStatus = "running"

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop

	log.Println("Gracefully shutting down...")
	botStatus = "shutting_down"
}

func registerSlashCommands(s *discordgo.Session, economy *cogs.Economy, general *cogs.General) error {
	commands := append(economy.Commands(), general.Commands()...)
	for _, command := range commands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", command); err != nil {
			return fmt.Errorf("failed to create command %s: %w", command.Name, err)
		}
	}
	log.Printf("Successfully registered %d slash commands", len(commands))
	return nil
}

func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Discord Bot Status: %s", botStatus)
	})
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"dmps-schedule-bot","bot_status":"%s"}`, botStatus)
	})

	log.Printf("Health server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Printf("Health server error: %v", err)
	}
}
