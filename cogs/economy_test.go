package cogs

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestAdminCreditOnlyOffersSubcommands(t *testing.T) {
	// Discord always delivers exactly one subcommand option for a
	// command defined this way, so the handler can rely on Options[0].
	economy := NewEconomy(nil, nil, nil, nil)
	var adminCredit *discordgo.ApplicationCommand
	for _, cmd := range economy.Commands() {
		if cmd.Name == "admin_credit" {
			adminCredit = cmd
		}
	}
	if adminCredit == nil {
		t.Fatal("admin_credit command not registered")
	}
	if len(adminCredit.Options) == 0 {
		t.Fatal("admin_credit has no subcommands")
	}
	for _, opt := range adminCredit.Options {
		if opt.Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("admin_credit option %q is %v, want subcommand", opt.Name, opt.Type)
		}
		for _, sub := range opt.Options {
			if !sub.Required {
				t.Errorf("admin_credit %s option %q should be required", opt.Name, sub.Name)
			}
		}
	}
	if adminCredit.DefaultMemberPermissions == nil ||
		*adminCredit.DefaultMemberPermissions != discordgo.PermissionAdministrator {
		t.Error("admin_credit is not gated to administrators")
	}
}
