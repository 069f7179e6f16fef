package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/internal/automod"
	"guildwarden/internal/cases"
	"guildwarden/internal/metrics"
)

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID != b.cfg.GuildID {
		return
	}
	ctx := context.Background()

	var roles []string
	if msg.Member != nil {
		roles = msg.Member.Roles
	}
	if b.automod != nil {
		removed := b.automod.HandleMessage(ctx, automod.Message{
			ID:        msg.ID,
			ChannelID: msg.ChannelID,
			AuthorID:  msg.Author.ID,
			Roles:     roles,
			Content:   msg.Content,
		})
		if removed {
			return
		}
	}
	if b.slowmode != nil {
		b.slowmode.HandleMessage(ctx, msg.ChannelID, msg.Author.ID)
	}
	if b.recorder != nil {
		b.recorder.CountMessage(msg.Author.ID, msg.ChannelID)
	}
	if b.rewarder != nil {
		b.rewarder.MarkActive(msg.Author.ID)
	}
	b.handleSticky(msg.ChannelID)
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID != b.cfg.GuildID || event.User == nil {
		return
	}
	ctx := context.Background()
	b.welcome(event.User)
	b.svc.HandleRejoin(ctx, event.User.ID)
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	if b.recorder == nil || event.GuildID != b.cfg.GuildID || event.UserID == "" {
		return
	}
	if event.ChannelID == "" {
		b.recorder.VoiceLeave(event.UserID)
		return
	}
	b.recorder.VoiceJoin(event.UserID, event.ChannelID)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID != b.cfg.GuildID {
		return
	}
	if interaction.Member == nil || interaction.Member.User == nil {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	invoker := interaction.Member.User.ID

	required := clearanceRequired[data.Name]
	if required > 0 {
		rank, err := b.platform.Clearance(ctx, invoker)
		if err != nil || rank < required {
			b.respondEmbed(interaction, b.badEmbed("You are not cleared to use this command."), true)
			return
		}
	}

	if err := b.dispatch(ctx, interaction, data, invoker); err != nil {
		metrics.CommandErrors.WithLabelValues(data.Name).Inc()
		b.logger.Warn("command failed",
			zap.String("command", data.Name),
			zap.String("invoker", invoker),
			zap.Error(err))
		b.respondEmbed(interaction, b.badEmbed(describeError(err)), true)
	}
}

func (b *Bot) dispatch(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, invoker string) error {
	opts := optionMap(data.Options)

	switch data.Name {
	case "note":
		record, err := b.svc.Note(ctx, invoker, opts.user("user"), opts.str("text"))
		return b.caseReply(interaction, record, err)
	case "dm":
		record, err := b.svc.DM(ctx, invoker, opts.user("user"), opts.str("message"))
		return b.caseReply(interaction, record, err)
	case "warn":
		record, err := b.svc.Warn(ctx, invoker, opts.user("user"), opts.str("reason"))
		return b.caseReply(interaction, record, err)
	case "kick":
		record, err := b.svc.Kick(ctx, invoker, opts.user("user"), opts.str("reason"))
		return b.caseReply(interaction, record, err)
	case "mute":
		record, err := b.svc.Mute(ctx, invoker, opts.user("user"), opts.str("reason"), opts.str("duration"))
		return b.caseReply(interaction, record, err)
	case "ban":
		record, err := b.svc.Ban(ctx, invoker, opts.user("user"), opts.str("reason"), opts.str("duration"))
		return b.caseReply(interaction, record, err)
	case "channelban":
		record, err := b.svc.ChannelBan(ctx, invoker, opts.user("user"), opts.channel("channel"), opts.str("reason"), opts.str("duration"))
		return b.caseReply(interaction, record, err)
	case "unmute":
		record, err := b.svc.Unmute(ctx, invoker, opts.user("user"), opts.str("reason"))
		return b.caseReply(interaction, record, err)
	case "unban":
		record, err := b.svc.Unban(ctx, invoker, opts.user("user"), opts.str("reason"))
		return b.caseReply(interaction, record, err)
	case "channelunban":
		record, err := b.svc.ChannelUnban(ctx, invoker, opts.user("user"), opts.channel("channel"), opts.str("reason"))
		return b.caseReply(interaction, record, err)
	case "decancer":
		record, err := b.svc.Decancer(ctx, invoker, opts.user("user"))
		return b.caseReply(interaction, record, err)
	case "modnick":
		record, err := b.svc.Modnick(ctx, invoker, opts.user("user"))
		return b.caseReply(interaction, record, err)
	case "reason":
		record, err := b.svc.EditReason(ctx, opts.integer("case_id"), opts.str("reason"))
		return b.editReply(interaction, record, err)
	case "duration":
		record, err := b.svc.EditDuration(ctx, opts.integer("case_id"), opts.str("duration"))
		return b.editReply(interaction, record, err)
	case "delcase":
		record, err := b.svc.SoftDelete(ctx, opts.integer("case_id"))
		if err != nil {
			return err
		}
		b.respondEmbed(interaction, b.goodEmbed("Case deleted", fmt.Sprintf("Case #%d is now hidden from history.", record.ID)), false)
		return nil
	case "restorecase":
		record, err := b.svc.Restore(ctx, opts.integer("case_id"))
		if err != nil {
			return err
		}
		b.respondEmbed(interaction, b.goodEmbed("Case restored", fmt.Sprintf("Case #%d is back in history.", record.ID)), false)
		return nil
	case "history":
		return b.handleHistory(ctx, interaction, opts)
	case "case":
		return b.handleCase(ctx, interaction, opts)
	case "coins":
		return b.handleCoins(ctx, interaction, opts, invoker)
	case "editcoins":
		return b.handleEditCoins(ctx, interaction, opts)
	case "domain":
		return b.handleDomain(ctx, interaction, opts)
	case "slowmode":
		return b.handleSlowmode(interaction, opts)
	case "guildconfig":
		return b.handleGuildConfig(ctx, interaction, opts)
	default:
		return fmt.Errorf("unknown command %q", data.Name)
	}
}

func (b *Bot) caseReply(interaction *discordgo.InteractionCreate, record cases.Record, err error) error {
	if err != nil {
		return err
	}
	b.publishCase(record)
	desc := fmt.Sprintf("Case #%d (%s) recorded for <@%s>.", record.ID, record.Kind.Display(), record.SubjectID)
	if record.Kind.Timed() && !record.Received {
		desc += "\nThe member could not be notified."
	}
	b.respondEmbed(interaction, b.goodEmbed(record.Kind.Display(), desc), false)
	return nil
}

func (b *Bot) editReply(interaction *discordgo.InteractionCreate, record cases.Record, err error) error {
	if err != nil {
		return err
	}
	b.respondEmbed(interaction, b.goodEmbed("Case updated",
		fmt.Sprintf("Case #%d: %s", record.ID, record.Reason)), false)
	return nil
}

func (b *Bot) handleHistory(ctx context.Context, interaction *discordgo.InteractionCreate, opts options) error {
	subject := opts.user("user")
	records, err := b.svc.History(ctx, subject, opts.boolean("deleted"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		b.respondEmbed(interaction, b.goodEmbed("History", fmt.Sprintf("<@%s> has no cases.", subject)), true)
		return nil
	}
	lines := make([]string, 0, len(records))
	for _, record := range records {
		line := fmt.Sprintf("`#%d` **%s** - %s", record.ID, record.Kind.Display(), record.Reason)
		if record.Active {
			line += " *(active)*"
		}
		if record.Deleted {
			line += " *(deleted)*"
		}
		lines = append(lines, line)
	}
	// Discord caps embed descriptions at 4096 characters.
	body := strings.Join(lines, "\n")
	if len(body) > 4000 {
		body = body[:4000] + "\n..."
	}
	b.respondEmbed(interaction, b.goodEmbed(fmt.Sprintf("History (%d cases)", len(records)), body), true)
	return nil
}

func (b *Bot) handleCase(ctx context.Context, interaction *discordgo.InteractionCreate, opts options) error {
	record, err := b.svc.Case(ctx, opts.integer("case_id"))
	if err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Subject: <@%s>\n", record.SubjectID)
	if record.ModeratorID != "" {
		fmt.Fprintf(&sb, "Moderator: <@%s>\n", record.ModeratorID)
	} else {
		sb.WriteString("Moderator: automated\n")
	}
	fmt.Fprintf(&sb, "Reason: %s\n", record.Reason)
	if record.ChannelID != "" {
		fmt.Fprintf(&sb, "Channel: <#%s>\n", record.ChannelID)
	}
	if record.Duration > 0 {
		fmt.Fprintf(&sb, "Duration: %s\n", cases.FormatDuration(record.Duration))
	}
	fmt.Fprintf(&sb, "Active: %t | Deleted: %t | Notified: %t", record.Active, record.Deleted, record.Received)
	b.respondEmbed(interaction, b.goodEmbed(
		fmt.Sprintf("Case #%d - %s", record.ID, record.Kind.Display()), sb.String()), true)
	return nil
}

func (b *Bot) handleCoins(ctx context.Context, interaction *discordgo.InteractionCreate, opts options, invoker string) error {
	subject := opts.user("user")
	if subject == "" {
		subject = invoker
	}
	entry, err := b.balances.CoinsEntryFor(ctx, subject)
	if err != nil {
		return err
	}
	b.respondEmbed(interaction, b.goodEmbed("Coins",
		fmt.Sprintf("<@%s> has %d coins (level %d).", subject, entry.Coins, entry.KnownLevel)), true)
	return nil
}

func (b *Bot) handleEditCoins(ctx context.Context, interaction *discordgo.InteractionCreate, opts options) error {
	subject := opts.user("user")
	entry, err := b.balances.AddCoins(ctx, subject, opts.integer("amount"))
	if err != nil {
		return err
	}
	b.respondEmbed(interaction, b.goodEmbed("Coins updated",
		fmt.Sprintf("<@%s> now has %d coins.", subject, entry.Coins)), false)
	return nil
}

func (b *Bot) handleDomain(ctx context.Context, interaction *discordgo.InteractionCreate, opts options) error {
	list := opts.str("list")
	action := opts.str("action")
	domain := strings.ToLower(strings.TrimSpace(opts.str("domain")))

	guild := b.holder.Snapshot()
	key := "domain_wl"
	current := guild.DomainAllow
	if list == "block" {
		key = "domain_bl"
		current = guild.DomainBlock
	}

	switch action {
	case "list":
		if len(current) == 0 {
			b.respondEmbed(interaction, b.goodEmbed("Domains", "The "+list+" list is empty."), true)
			return nil
		}
		b.respondEmbed(interaction, b.goodEmbed("Domains", "`"+strings.Join(current, "`, `")+"`"), true)
		return nil
	case "add":
		if domain == "" {
			return errors.New("a domain is required")
		}
		for _, existing := range current {
			if existing == domain {
				b.respondEmbed(interaction, b.goodEmbed("Domains", "`"+domain+"` is already on the "+list+" list."), true)
				return nil
			}
		}
		updated := append(append([]string{}, current...), domain)
		if _, err := b.holder.Update(ctx, map[string]any{key: updated}); err != nil {
			return err
		}
		b.respondEmbed(interaction, b.goodEmbed("Domains", "Added `"+domain+"` to the "+list+" list."), false)
		return nil
	case "remove":
		if domain == "" {
			return errors.New("a domain is required")
		}
		updated := make([]string, 0, len(current))
		for _, existing := range current {
			if existing != domain {
				updated = append(updated, existing)
			}
		}
		if _, err := b.holder.Update(ctx, map[string]any{key: updated}); err != nil {
			return err
		}
		b.respondEmbed(interaction, b.goodEmbed("Domains", "Removed `"+domain+"` from the "+list+" list."), false)
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (b *Bot) handleSlowmode(interaction *discordgo.InteractionCreate, opts options) error {
	channelID := opts.channel("channel")
	seconds := opts.integer("seconds")
	b.slowmode.SetChannel(channelID, time.Duration(seconds)*time.Second)
	if seconds <= 0 {
		b.respondEmbed(interaction, b.goodEmbed("Slowmode", fmt.Sprintf("Cooldown disabled for <#%s>.", channelID)), false)
		return nil
	}
	b.respondEmbed(interaction, b.goodEmbed("Slowmode",
		fmt.Sprintf("Cooldown for <#%s> set to %ds.", channelID, seconds)), false)
	return nil
}

func (b *Bot) handleGuildConfig(ctx context.Context, interaction *discordgo.InteractionCreate, opts options) error {
	key := opts.str("key")
	if key == "reload" {
		if _, err := b.holder.Reload(ctx); err != nil {
			return err
		}
		b.respondEmbed(interaction, b.goodEmbed("Config", "Snapshot reloaded from the store."), false)
		return nil
	}
	value := opts.str("value")
	if value == "" {
		return errors.New("a value is required")
	}
	if _, err := b.holder.Update(ctx, map[string]any{key: value}); err != nil {
		return err
	}
	b.respondEmbed(interaction, b.goodEmbed("Config", "Updated `"+key+"`."), false)
	return nil
}

func describeError(err error) string {
	var durErr *cases.DurationError
	var dupErr *cases.AlreadySanctionedError
	var missErr *cases.NotSanctionedError
	switch {
	case errors.As(err, &durErr):
		return durErr.Error()
	case errors.As(err, &dupErr):
		return dupErr.Error()
	case errors.As(err, &missErr):
		return missErr.Error()
	case errors.Is(err, cases.ErrTargetProtected):
		return "That member is staff."
	case errors.Is(err, cases.ErrCaseNotFound):
		return "No such case."
	case errors.Is(err, cases.ErrCaseActive):
		return "That case is still active; lift it first."
	case errors.Is(err, cases.ErrCaseDeleted):
		return "That case is deleted."
	case errors.Is(err, cases.ErrUnknownMember):
		return "That member could not be found."
	default:
		return "Something went wrong, check the logs."
	}
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(list []*discordgo.ApplicationCommandInteractionDataOption) options {
	mapped := make(options, len(list))
	for _, opt := range list {
		mapped[opt.Name] = opt
	}
	return mapped
}

func (o options) str(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o options) integer(name string) int64 {
	if opt, ok := o[name]; ok {
		return opt.IntValue()
	}
	return 0
}

func (o options) boolean(name string) bool {
	if opt, ok := o[name]; ok {
		return opt.BoolValue()
	}
	return false
}

// user returns the raw snowflake without resolving the user object; the
// service validates membership itself.
func (o options) user(name string) string {
	if opt, ok := o[name]; ok {
		if value, isString := opt.Value.(string); isString {
			return value
		}
	}
	return ""
}

func (o options) channel(name string) string {
	if opt, ok := o[name]; ok {
		if value, isString := opt.Value.(string); isString {
			return value
		}
	}
	return ""
}
