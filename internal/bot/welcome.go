package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// welcome greets a new member in the general channel. The configured
// message may reference {user} and {guild}.
func (b *Bot) welcome(user *discordgo.User) {
	guild := b.holder.Snapshot()
	if guild.GeneralChannel == "" || guild.WelcomeMessage == "" {
		return
	}
	message := strings.NewReplacer(
		"{user}", "<@"+user.ID+">",
		"{guild}", b.cfg.GuildName,
	).Replace(guild.WelcomeMessage)
	if _, err := b.session.ChannelMessageSend(guild.GeneralChannel, message); err != nil {
		b.logger.Warn("welcome message failed", zap.String("user", user.ID), zap.Error(err))
	}
}

// handleSticky re-posts the sticky message after every N messages in the
// sticky channel, deleting the previous copy so only one is visible.
func (b *Bot) handleSticky(channelID string) {
	guild := b.holder.Snapshot()
	if guild.StickyChannel == "" || guild.StickyMessage == "" || channelID != guild.StickyChannel {
		return
	}
	every := b.cfg.Sticky.EveryMessages
	if every <= 0 {
		every = 8
	}

	b.stickyMu.Lock()
	b.stickySeen++
	if b.stickySeen < every {
		b.stickyMu.Unlock()
		return
	}
	b.stickySeen = 0
	previous := b.stickyLast
	b.stickyMu.Unlock()

	if previous != "" {
		_ = b.session.ChannelMessageDelete(guild.StickyChannel, previous)
	}
	msg, err := b.session.ChannelMessageSend(guild.StickyChannel, guild.StickyMessage)
	if err != nil {
		b.logger.Warn("sticky post failed", zap.Error(err))
		return
	}
	b.stickyMu.Lock()
	b.stickyLast = msg.ID
	b.stickyMu.Unlock()
}
