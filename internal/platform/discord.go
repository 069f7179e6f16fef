// Package platform adapts discordgo to the capability interfaces the rest
// of the bot consumes.
package platform

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"guildwarden/internal/cases"
	"guildwarden/internal/store"
)

// Discord implements cases.Platform and the messaging/role surfaces on a
// single guild. All snowflake ids are strings, as on the wire.
type Discord struct {
	session *discordgo.Session
	guildID string
	holder  *store.ConfigHolder
	logger  *zap.Logger
}

func NewDiscord(session *discordgo.Session, guildID string, holder *store.ConfigHolder, logger *zap.Logger) *Discord {
	return &Discord{session: session, guildID: guildID, holder: holder, logger: logger}
}

func (d *Discord) Timeout(ctx context.Context, userID string, until time.Time) error {
	_ = ctx
	return mapNotFound(d.session.GuildMemberTimeout(d.guildID, userID, &until))
}

func (d *Discord) ClearTimeout(ctx context.Context, userID string) error {
	_ = ctx
	return mapNotFound(d.session.GuildMemberTimeout(d.guildID, userID, nil))
}

func (d *Discord) Ban(ctx context.Context, userID, reason string) error {
	_ = ctx
	return mapNotFound(d.session.GuildBanCreateWithReason(d.guildID, userID, reason, 0))
}

func (d *Discord) Unban(ctx context.Context, userID string) error {
	_ = ctx
	return mapNotFound(d.session.GuildBanDelete(d.guildID, userID))
}

func (d *Discord) HideChannel(ctx context.Context, channelID, userID string) error {
	_ = ctx
	return mapNotFound(d.session.ChannelPermissionSet(
		channelID, userID, discordgo.PermissionOverwriteTypeMember,
		0, discordgo.PermissionViewChannel))
}

func (d *Discord) UnhideChannel(ctx context.Context, channelID, userID string) error {
	_ = ctx
	return mapNotFound(d.session.ChannelPermissionDelete(channelID, userID))
}

func (d *Discord) IsTimedOut(ctx context.Context, userID string) (bool, error) {
	_ = ctx
	member, err := d.member(userID)
	if err != nil {
		return false, err
	}
	return member.CommunicationDisabledUntil != nil &&
		member.CommunicationDisabledUntil.After(time.Now()), nil
}

func (d *Discord) IsBanned(ctx context.Context, userID string) (bool, error) {
	_ = ctx
	_, err := d.session.GuildBan(d.guildID, userID)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (d *Discord) IsChannelHidden(ctx context.Context, channelID, userID string) (bool, error) {
	_ = ctx
	channel, err := d.session.Channel(channelID)
	if err != nil {
		return false, mapNotFound(err)
	}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type != discordgo.PermissionOverwriteTypeMember || overwrite.ID != userID {
			continue
		}
		if overwrite.Deny&discordgo.PermissionViewChannel != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (d *Discord) DirectMessage(ctx context.Context, userID, content string) error {
	_ = ctx
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return mapNotFound(err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content)
	return err
}

func (d *Discord) Kick(ctx context.Context, userID, reason string) error {
	_ = ctx
	return mapNotFound(d.session.GuildMemberDeleteWithReason(d.guildID, userID, reason))
}

func (d *Discord) SetNickname(ctx context.Context, userID, nick string) error {
	_ = ctx
	return mapNotFound(d.session.GuildMemberNickname(d.guildID, userID, nick))
}

func (d *Discord) DisplayName(ctx context.Context, userID string) (string, error) {
	_ = ctx
	member, err := d.member(userID)
	if err != nil {
		return "", err
	}
	if member.Nick != "" {
		return member.Nick, nil
	}
	if member.User != nil {
		return member.User.Username, nil
	}
	return "", cases.ErrUnknownMember
}

// Clearance maps the member's highest configured staff role to a rank.
// Zero means no staff role.
func (d *Discord) Clearance(ctx context.Context, userID string) (int, error) {
	_ = ctx
	member, err := d.member(userID)
	if err != nil {
		return 0, err
	}
	cfg := d.holder.Snapshot()
	ranks := map[string]int{
		cfg.HelperRole: 1,
		cfg.TmodRole:   2,
		cfg.RmodRole:   3,
		cfg.SmodRole:   4,
		cfg.HmodRole:   5,
		cfg.SeniorRole: 6,
		cfg.AdminRole:  9,
	}
	delete(ranks, "")

	best := 0
	for _, roleID := range member.Roles {
		if rank, ok := ranks[roleID]; ok && rank > best {
			best = rank
		}
	}
	return best, nil
}

// SendMessage posts plain text to a channel.
func (d *Discord) SendMessage(ctx context.Context, channelID, content string) error {
	_ = ctx
	_, err := d.session.ChannelMessageSend(channelID, content)
	return err
}

// DeleteMessage removes a message.
func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_ = ctx
	return d.session.ChannelMessageDelete(channelID, messageID)
}

// DenySend blocks a member from posting in a channel.
func (d *Discord) DenySend(ctx context.Context, channelID, userID string) error {
	_ = ctx
	return mapNotFound(d.session.ChannelPermissionSet(
		channelID, userID, discordgo.PermissionOverwriteTypeMember,
		0, discordgo.PermissionSendMessages))
}

// AllowSend lifts a DenySend overwrite.
func (d *Discord) AllowSend(ctx context.Context, channelID, userID string) error {
	_ = ctx
	return mapNotFound(d.session.ChannelPermissionDelete(channelID, userID))
}

// RotateRole makes exactly the given members carry the role, using the
// state cache for the current holder set.
func (d *Discord) RotateRole(ctx context.Context, roleID string, userIDs []string) error {
	_ = ctx
	if roleID == "" {
		return nil
	}
	winners := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		winners[id] = struct{}{}
	}

	guild, err := d.session.State.Guild(d.guildID)
	if err != nil || guild == nil {
		guild, err = d.session.Guild(d.guildID)
		if err != nil {
			return err
		}
	}
	for _, member := range guild.Members {
		if member == nil || member.User == nil {
			continue
		}
		has := false
		for _, id := range member.Roles {
			if id == roleID {
				has = true
				break
			}
		}
		_, keep := winners[member.User.ID]
		if has && !keep {
			if err := d.session.GuildMemberRoleRemove(d.guildID, member.User.ID, roleID); err != nil {
				d.logger.Warn("role remove failed", zap.String("user", member.User.ID), zap.Error(err))
			}
		}
		if keep {
			delete(winners, member.User.ID)
			if !has {
				if err := d.session.GuildMemberRoleAdd(d.guildID, member.User.ID, roleID); err != nil {
					d.logger.Warn("role add failed", zap.String("user", member.User.ID), zap.Error(err))
				}
			}
		}
	}
	for userID := range winners {
		if err := d.session.GuildMemberRoleAdd(d.guildID, userID, roleID); err != nil {
			d.logger.Warn("role add failed", zap.String("user", userID), zap.Error(err))
		}
	}
	return nil
}

// member resolves state-first, falling back to the REST API.
func (d *Discord) member(userID string) (*discordgo.Member, error) {
	member, err := d.session.State.Member(d.guildID, userID)
	if err == nil && member != nil {
		return member, nil
	}
	member, err = d.session.GuildMember(d.guildID, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return member, nil
}

func mapNotFound(err error) error {
	if isNotFound(err) {
		return cases.ErrUnknownMember
	}
	return err
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode == http.StatusNotFound
	}
	return false
}
