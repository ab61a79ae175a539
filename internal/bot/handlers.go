package bot

import (
	"context"
	"fmt"
	"time"

	"sentinel-antialt/internal/modules/audit"
	"sentinel-antialt/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	var response *discordgo.InteractionResponse
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		if interaction.ApplicationCommandData().Name == commandName {
			response = b.panel.Open(interaction)
		}
	case discordgo.InteractionMessageComponent:
		response = b.panel.HandleComponent(ctx, interaction)
	case discordgo.InteractionModalSubmit:
		response = b.panel.HandleModal(ctx, interaction)
	}
	if response == nil {
		return
	}
	if err := session.InteractionRespond(interaction.Interaction, response); err != nil {
		b.logger.Warn("interaction response failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
	}
}

type channelFetcher func(channelID string) (*discordgo.Channel, error)

// notifyAudit mirrors enforcement entries into the security log channel.
func (b *Bot) notifyAudit(entry storage.AuditLog) {
	channelID := b.cfg.DefaultSecurityLogChannel
	if channelID == "" || entry.Event == audit.EventAltConfig {
		return
	}
	if !channelInGuild(b.session.State, b.fetchChannel, channelID, entry.GuildID) {
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, b.buildAuditEmbed(entry)); err != nil {
		b.logger.Warn("audit channel send failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// channelInGuild reports whether channelID belongs to guildID, asking the
// API when the state cache misses. Unknown channels count as foreign.
func channelInGuild(state *discordgo.State, fetch channelFetcher, channelID, guildID string) bool {
	if state != nil {
		if channel, err := state.Channel(channelID); err == nil {
			return channel.GuildID == guildID
		}
	}
	if fetch == nil {
		return false
	}
	channel, err := fetch(channelID)
	if err != nil || channel == nil {
		return false
	}
	return channel.GuildID == guildID
}

func (b *Bot) buildAuditEmbed(entry storage.AuditLog) *discordgo.MessageEmbed {
	color := b.cfg.Notifications.EmbedColors.Warning
	title := "Anti-Alt"
	switch entry.Event {
	case audit.EventAltKick:
		title = "Anti-Alt: member kicked"
	case audit.EventAltBan:
		title = "Anti-Alt: member banned"
	case audit.EventAltFailed:
		title = "Anti-Alt: removal failed"
		color = b.cfg.Notifications.EmbedColors.Error
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: entry.Level, Inline: true},
	}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", entry.UserID, entry.UserID), Inline: true})
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: "`" + entry.Details + "`"})
	}
	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Timestamp: entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
