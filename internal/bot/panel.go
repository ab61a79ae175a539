package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinel-antialt/internal/analytics"
	"sentinel-antialt/internal/config"
	"sentinel-antialt/internal/modules/audit"
	"sentinel-antialt/internal/policy"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	panelPrefix = "antialt"

	actionEnable     = "enable"
	actionDisable    = "disable"
	actionConfig     = "config"
	actionThreshold  = "threshold"
	actionPunishment = "punishment"

	thresholdModalID  = panelPrefix + ":threshold_modal"
	thresholdInputID  = panelPrefix + ":threshold_input"
	punishmentMenuID  = panelPrefix + ":punishment_select"
	statsWindow       = 7 * 24 * time.Hour
	msgNotAuthorized  = "You are not authorized to use these buttons."
	msgAdminOnly      = "❌ You need the **Administrator** permission to configure **Anti-Alt**."
	msgGuildOnly      = "❌ This command can only be used inside a server."
	msgSaveFailed     = "❌ Failed to save **Anti-Alt** settings, please try again."
	msgInvalidNumber  = "❌ Please enter a valid number."
	msgThresholdRange = "❌ **Threshold** must be set between 1 to 3650 days."
)

// Panel renders the /antialt setup menu and applies the changes made
// through its buttons, modal and select menu.
type Panel struct {
	policies  *policy.Store
	audit     *audit.Logger
	analytics *analytics.Service
	colors    config.EmbedColors
	logger    *zap.Logger
	now       func() time.Time
}

func NewPanel(policies *policy.Store, auditLogger *audit.Logger, analyticsEngine *analytics.Service, colors config.EmbedColors, logger *zap.Logger) *Panel {
	return &Panel{
		policies:  policies,
		audit:     auditLogger,
		analytics: analyticsEngine,
		colors:    colors,
		logger:    logger,
		now:       time.Now,
	}
}

// Open answers the /antialt command with the setup menu.
func (p *Panel) Open(interaction *discordgo.InteractionCreate) *discordgo.InteractionResponse {
	if interaction.GuildID == "" {
		return messageResponse(msgGuildOnly, true)
	}
	if !isAdmin(interaction) {
		return messageResponse(msgAdminOnly, true)
	}
	user := interactionUser(interaction)
	if user == nil {
		return messageResponse(msgNotAuthorized, true)
	}

	embed := &discordgo.MessageEmbed{
		Description: ">>> Navigate through the buttons below to setup and configure **Anti Alt Module** into the guild.",
		Color:       p.colors.Action,
		Author:      &discordgo.MessageEmbedAuthor{Name: "Anti-Alt Setup Menu"},
		Footer:      &discordgo.MessageEmbedFooter{Text: "Requested by " + user.Username},
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: panelComponents(user.ID),
		},
	}
}

// HandleComponent handles button clicks and select menu choices. It
// returns nil for components that do not belong to the panel.
func (p *Panel) HandleComponent(ctx context.Context, interaction *discordgo.InteractionCreate) *discordgo.InteractionResponse {
	data := interaction.MessageComponentData()
	if data.CustomID == punishmentMenuID {
		return p.selectPunishment(ctx, interaction, data.Values)
	}

	action, ownerID, ok := parseButtonID(data.CustomID)
	if !ok {
		return nil
	}
	user := interactionUser(interaction)
	if user == nil || user.ID != ownerID {
		return messageResponse(msgNotAuthorized, true)
	}
	if !isAdmin(interaction) {
		return messageResponse(msgAdminOnly, true)
	}
	guildID, err := policy.ParseGuildID(interaction.GuildID)
	if err != nil {
		return messageResponse(msgGuildOnly, true)
	}

	switch action {
	case actionEnable:
		updated, err := p.policies.Enable(guildID)
		if err != nil {
			return p.saveFailed(guildID, "enable", err)
		}
		p.audit.Log(ctx, audit.LevelInfo, guildID.String(), user.ID, audit.EventAltConfig, "enabled=true")
		return messageResponse(fmt.Sprintf("✅ **Enabled** Anti-Alt For This Server! ( Threshold : %dd )", updated.Threshold), false)
	case actionDisable:
		if _, err := p.policies.Disable(guildID); err != nil {
			return p.saveFailed(guildID, "disable", err)
		}
		p.audit.Log(ctx, audit.LevelInfo, guildID.String(), user.ID, audit.EventAltConfig, "enabled=false")
		return messageResponse("✅ **Disabled** Anti-Alt For This Server!", false)
	case actionConfig:
		current, err := p.policies.Get(guildID)
		if err != nil {
			return p.saveFailed(guildID, "view", err)
		}
		return embedResponse(p.configEmbed(ctx, guildID, current), true)
	case actionThreshold:
		return thresholdModal()
	case actionPunishment:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    "Select the **punishment** type:",
				Flags:      discordgo.MessageFlagsEphemeral,
				Components: punishmentMenu(),
			},
		}
	default:
		return nil
	}
}

// HandleModal applies the threshold entered in the modal.
func (p *Panel) HandleModal(ctx context.Context, interaction *discordgo.InteractionCreate) *discordgo.InteractionResponse {
	data := interaction.ModalSubmitData()
	if data.CustomID != thresholdModalID {
		return nil
	}
	if !isAdmin(interaction) {
		return messageResponse(msgAdminOnly, true)
	}
	guildID, err := policy.ParseGuildID(interaction.GuildID)
	if err != nil {
		return messageResponse(msgGuildOnly, true)
	}

	days, err := policy.ParseThreshold(modalValue(data.Components, thresholdInputID))
	switch {
	case errors.Is(err, policy.ErrThresholdNotNumber):
		return messageResponse(msgInvalidNumber, true)
	case errors.Is(err, policy.ErrThresholdRange):
		return messageResponse(msgThresholdRange, true)
	}

	if _, err := p.policies.SetThreshold(guildID, days); err != nil {
		return p.saveFailed(guildID, "threshold", err)
	}
	p.audit.Log(ctx, audit.LevelInfo, guildID.String(), userID(interaction), audit.EventAltConfig, fmt.Sprintf("threshold=%d", days))
	return messageResponse(fmt.Sprintf("✅ **Anti-Alt** threshold set to **%d** day(s).", days), true)
}

func (p *Panel) selectPunishment(ctx context.Context, interaction *discordgo.InteractionCreate, values []string) *discordgo.InteractionResponse {
	if !isAdmin(interaction) {
		return messageResponse(msgAdminOnly, true)
	}
	guildID, err := policy.ParseGuildID(interaction.GuildID)
	if err != nil {
		return messageResponse(msgGuildOnly, true)
	}
	if len(values) == 0 {
		return nil
	}

	updated, err := p.policies.SetPunishment(guildID, values[0])
	if errors.Is(err, policy.ErrUnknownPunishment) {
		return messageResponse("❌ Unknown punishment type.", true)
	}
	if err != nil {
		return p.saveFailed(guildID, "punishment", err)
	}
	p.audit.Log(ctx, audit.LevelInfo, guildID.String(), userID(interaction), audit.EventAltConfig, "punishment="+string(updated.Punishment))
	return messageResponse(fmt.Sprintf("✅ Punishment type set to **%s** for **Anti-Alt** system.", updated.Punishment.Label()), true)
}

func (p *Panel) configEmbed(ctx context.Context, guildID policy.GuildID, current policy.GuildPolicy) *discordgo.MessageEmbed {
	description := fmt.Sprintf("Below is the information about the config of **Anti-Alt** Module for this guild.\n- Anti-Alt : `%s`\n- Threshold : `%d` day(s)\n- Punishment : `%s`",
		current.Status(), current.Threshold, current.Punishment)

	embed := &discordgo.MessageEmbed{Description: description, Color: p.colors.Action}
	if p.analytics == nil {
		return embed
	}
	report, err := p.analytics.Report(ctx, guildID.String(), p.now().Add(-statsWindow))
	if err != nil {
		p.logger.Warn("anti-alt stats failed", zap.String("guild_id", guildID.String()), zap.Error(err))
		return embed
	}
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Kicks (7d)", Value: fmt.Sprintf("%d", report.Kicks), Inline: true},
		{Name: "Bans (7d)", Value: fmt.Sprintf("%d", report.Bans), Inline: true},
		{Name: "Failed (7d)", Value: fmt.Sprintf("%d", report.Failed), Inline: true},
	}
	return embed
}

func (p *Panel) saveFailed(guildID policy.GuildID, op string, err error) *discordgo.InteractionResponse {
	p.logger.Error("anti-alt settings update failed", zap.String("guild_id", guildID.String()), zap.String("op", op), zap.Error(err))
	return messageResponse(msgSaveFailed, true)
}

func panelComponents(ownerID string) []discordgo.MessageComponent {
	button := func(label, action string, style discordgo.ButtonStyle) discordgo.MessageComponent {
		return discordgo.Button{Label: label, Style: style, CustomID: buttonID(action, ownerID)}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("Enable Anti-Alt", actionEnable, discordgo.SuccessButton),
			button("Disable Anti-Alt", actionDisable, discordgo.DangerButton),
			button("Config Anti-Alt", actionConfig, discordgo.PrimaryButton),
			button("Set Anti-Alt Threshold", actionThreshold, discordgo.SecondaryButton),
			button("Set Anti-Alt Punishment", actionPunishment, discordgo.SecondaryButton),
		}},
	}
}

func punishmentMenu() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    punishmentMenuID,
				Placeholder: "choose punishment type",
				Options: []discordgo.SelectMenuOption{
					{Label: policy.PunishKick.Label(), Value: string(policy.PunishKick)},
					{Label: policy.PunishBan.Label(), Value: string(policy.PunishBan)},
				},
			},
		}},
	}
}

func thresholdModal() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: thresholdModalID,
			Title:    "Set Threshold",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    thresholdInputID,
						Label:       "Threshold (in days)",
						Style:       discordgo.TextInputShort,
						Placeholder: "Enter a number between 1 and 3650",
						Required:    true,
						MinLength:   1,
						MaxLength:   4,
					},
				}},
			},
		},
	}
}

func buttonID(action, ownerID string) string {
	return panelPrefix + ":" + action + ":" + ownerID
}

func parseButtonID(customID string) (action, ownerID string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != panelPrefix || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func modalValue(components []discordgo.MessageComponent, customID string) string {
	for _, component := range components {
		switch c := component.(type) {
		case *discordgo.ActionsRow:
			if value := modalValue(c.Components, customID); value != "" {
				return value
			}
		case discordgo.ActionsRow:
			if value := modalValue(c.Components, customID); value != "" {
				return value
			}
		case *discordgo.TextInput:
			if c.CustomID == customID {
				return c.Value
			}
		case discordgo.TextInput:
			if c.CustomID == customID {
				return c.Value
			}
		}
	}
	return ""
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func userID(interaction *discordgo.InteractionCreate) string {
	if user := interactionUser(interaction); user != nil {
		return user.ID
	}
	return ""
}

func isAdmin(interaction *discordgo.InteractionCreate) bool {
	if interaction.Member == nil {
		return false
	}
	return interaction.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func messageResponse(content string, ephemeral bool) *discordgo.InteractionResponse {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}
}

func embedResponse(embed *discordgo.MessageEmbed, ephemeral bool) *discordgo.InteractionResponse {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	}
}
