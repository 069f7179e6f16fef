// Package bot wires the Discord session: gateway events in, slash-command
// responses and moderation-log embeds out.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/internal/automod"
	"guildwarden/internal/cases"
	"guildwarden/internal/config"
	"guildwarden/internal/levels"
	"guildwarden/internal/platform"
	"guildwarden/internal/stats"
	"guildwarden/internal/store"
)

const (
	colorGood = 0x2ECC71
	colorBad  = 0xE74C3C
	colorInfo = 0x3498DB
)

type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	session  *discordgo.Session
	holder   *store.ConfigHolder
	platform *platform.Discord
	svc      *cases.Service
	automod  *automod.Module
	slowmode *automod.Slowmode
	rewarder *levels.Rewarder
	recorder *stats.Recorder
	balances levels.Balances

	stickyMu   sync.Mutex
	stickySeen int
	stickyLast string
}

func New(cfg config.Config, logger *zap.Logger, holder *store.ConfigHolder, balances levels.Balances) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	return &Bot{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		holder:   holder,
		balances: balances,
	}, nil
}

// Session exposes the raw session for the platform adapter.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Wire attaches the collaborators built around the shared session.
func (b *Bot) Wire(svc *cases.Service, plat *platform.Discord, mod *automod.Module, slow *automod.Slowmode, rewarder *levels.Rewarder, recorder *stats.Recorder) {
	b.svc = svc
	b.platform = plat
	b.automod = mod
	b.slowmode = slow
	b.rewarder = rewarder
	b.recorder = recorder
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.slowmode != nil {
		b.slowmode.Release(context.Background())
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
	if b.cfg.Presence != "" {
		_ = session.UpdateWatchStatus(0, b.cfg.Presence)
	}
}

// RefreshPresence re-asserts the status line; the gateway drops it on
// reconnects. Runs as a scheduler job.
func (b *Bot) RefreshPresence(ctx context.Context) error {
	_ = ctx
	if b.cfg.Presence == "" {
		return nil
	}
	return b.session.UpdateWatchStatus(0, b.cfg.Presence)
}

func (b *Bot) respondEmbed(interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) goodEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       colorGood,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b *Bot) badEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Error",
		Description: description,
		Color:       colorBad,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// publishCase mirrors a new case into the moderation log channel.
func (b *Bot) publishCase(record cases.Record) {
	guild := b.holder.Snapshot()
	if guild.ModlogChannel == "" {
		return
	}
	moderator := "automated"
	if record.ModeratorID != "" {
		moderator = "<@" + record.ModeratorID + ">"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Subject", Value: "<@" + record.SubjectID + ">", Inline: true},
		{Name: "Moderator", Value: moderator, Inline: true},
		{Name: "Reason", Value: record.Reason, Inline: false},
	}
	if record.ChannelID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Channel", Value: "<#" + record.ChannelID + ">", Inline: true,
		})
	}
	if record.Duration > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Duration", Value: cases.FormatDuration(record.Duration), Inline: true,
		})
	}
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Case #%d - %s", record.ID, record.Kind.Display()),
		Color:     colorInfo,
		Timestamp: time.Unix(record.CreatedAt, 0).Format(time.RFC3339),
		Fields:    fields,
	}
	if _, err := b.session.ChannelMessageSendEmbed(guild.ModlogChannel, embed); err != nil {
		b.logger.Warn("modlog publish failed", zap.Int64("case_id", record.ID), zap.Error(err))
	}
}
