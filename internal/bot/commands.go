package bot

import "github.com/bwmarrin/discordgo"

// clearanceRequired maps each command to the minimum staff rank that may
// invoke it. Ranks follow the configured role ladder; 9 is admin.
var clearanceRequired = map[string]int{
	"note":         1,
	"dm":           3,
	"warn":         1,
	"kick":         2,
	"mute":         2,
	"ban":          3,
	"channelban":   2,
	"unmute":       2,
	"unban":        3,
	"channelunban": 2,
	"decancer":     1,
	"modnick":      1,
	"reason":       2,
	"duration":     3,
	"delcase":      5,
	"restorecase":  5,
	"history":      1,
	"case":         1,
	"coins":        0,
	"editcoins":    5,
	"domain":       4,
	"slowmode":     4,
	"guildconfig":  9,
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	user := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "target member",
			Required:    required,
		}
	}
	reason := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "reason for the case",
		Required:    false,
	}
	duration := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "duration",
			Description: "duration such as 30m, 2h, 7d, or permanent",
			Required:    required,
		}
	}
	channel := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionChannel,
		Name:        "channel",
		Description: "target channel",
		Required:    true,
	}
	caseID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "case_id",
		Description: "case number",
		Required:    true,
	}

	return []*discordgo.ApplicationCommand{
		{Name: "note", Description: "Record an internal note about a member",
			Options: []*discordgo.ApplicationCommandOption{user(true), {
				Type: discordgo.ApplicationCommandOptionString, Name: "text",
				Description: "note text", Required: true,
			}}},
		{Name: "dm", Description: "Send a member an official direct message",
			Options: []*discordgo.ApplicationCommandOption{user(true), {
				Type: discordgo.ApplicationCommandOptionString, Name: "message",
				Description: "message to deliver", Required: true,
			}}},
		{Name: "warn", Description: "Warn a member",
			Options: []*discordgo.ApplicationCommandOption{user(true), reason}},
		{Name: "kick", Description: "Kick a member",
			Options: []*discordgo.ApplicationCommandOption{user(true), reason}},
		{Name: "mute", Description: "Time a member out",
			Options: []*discordgo.ApplicationCommandOption{user(true), duration(true), reason}},
		{Name: "ban", Description: "Ban a member, permanently unless a duration is given",
			Options: []*discordgo.ApplicationCommandOption{user(true), duration(false), reason}},
		{Name: "channelban", Description: "Hide a channel from a member",
			Options: []*discordgo.ApplicationCommandOption{user(true), channel, duration(false), reason}},
		{Name: "unmute", Description: "Lift a timeout",
			Options: []*discordgo.ApplicationCommandOption{user(true), reason}},
		{Name: "unban", Description: "Lift a ban",
			Options: []*discordgo.ApplicationCommandOption{user(true), reason}},
		{Name: "channelunban", Description: "Restore a member's view of a channel",
			Options: []*discordgo.ApplicationCommandOption{user(true), channel, reason}},
		{Name: "decancer", Description: "Normalize a member's display name",
			Options: []*discordgo.ApplicationCommandOption{user(true)}},
		{Name: "modnick", Description: "Replace a member's nickname with a placeholder",
			Options: []*discordgo.ApplicationCommandOption{user(true)}},
		{Name: "reason", Description: "Edit the reason of a case",
			Options: []*discordgo.ApplicationCommandOption{caseID, {
				Type: discordgo.ApplicationCommandOptionString, Name: "reason",
				Description: "new reason", Required: true,
			}}},
		{Name: "duration", Description: "Edit the duration of a case",
			Options: []*discordgo.ApplicationCommandOption{caseID, duration(true)}},
		{Name: "delcase", Description: "Soft-delete a case",
			Options: []*discordgo.ApplicationCommandOption{caseID}},
		{Name: "restorecase", Description: "Restore a soft-deleted case",
			Options: []*discordgo.ApplicationCommandOption{caseID}},
		{Name: "history", Description: "List a member's cases",
			Options: []*discordgo.ApplicationCommandOption{user(true), {
				Type: discordgo.ApplicationCommandOptionBoolean, Name: "deleted",
				Description: "include soft-deleted cases", Required: false,
			}}},
		{Name: "case", Description: "Show one case",
			Options: []*discordgo.ApplicationCommandOption{caseID}},
		{Name: "coins", Description: "Show a coin balance",
			Options: []*discordgo.ApplicationCommandOption{user(false)}},
		{Name: "editcoins", Description: "Adjust a member's coin balance",
			Options: []*discordgo.ApplicationCommandOption{user(true), {
				Type: discordgo.ApplicationCommandOptionInteger, Name: "amount",
				Description: "positive or negative delta", Required: true,
			}}},
		{Name: "domain", Description: "Manage the link filter domain lists",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "list",
					Description: "allow or block", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "allow", Value: "allow"},
						{Name: "block", Value: "block"},
					}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "action",
					Description: "add, remove, or list", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "domain",
					Description: "domain name", Required: false},
			}},
		{Name: "slowmode", Description: "Set the custom cooldown for a channel",
			Options: []*discordgo.ApplicationCommandOption{channel, {
				Type: discordgo.ApplicationCommandOptionInteger, Name: "seconds",
				Description: "cooldown in seconds, 0 to disable", Required: true,
			}}},
		{Name: "guildconfig", Description: "Set a guild setting or reload the snapshot",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "key",
					Description: "setting key, or reload", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "reload", Value: "reload"},
						{Name: "general_channel", Value: "general_channel"},
						{Name: "log_channel", Value: "log_channel"},
						{Name: "modlog_channel", Value: "modlog_channel"},
						{Name: "automod_channel", Value: "automod_channel"},
						{Name: "sticky_channel", Value: "sticky_channel"},
						{Name: "helper_role", Value: "helper_role"},
						{Name: "tmod_role", Value: "tmod_role"},
						{Name: "rmod_role", Value: "rmod_role"},
						{Name: "smod_role", Value: "smod_role"},
						{Name: "hmod_role", Value: "hmod_role"},
						{Name: "senior_role", Value: "senior_role"},
						{Name: "admin_role", Value: "admin_role"},
						{Name: "active_role", Value: "active_role"},
						{Name: "welcome_msg", Value: "welcome_msg"},
						{Name: "sticky_msg", Value: "sticky_msg"},
					}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "value",
					Description: "new value", Required: false},
			}},
	}
}

// registerCommands reconciles the guild's slash commands against the
// desired set: edit what exists, create what is missing, drop the rest.
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()
	appID := b.session.State.User.ID
	guildID := b.cfg.GuildID

	existing, err := b.session.ApplicationCommands(appID, guildID)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, guildID, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
	}
	return nil
}
