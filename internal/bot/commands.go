package bot

import "github.com/bwmarrin/discordgo"

const commandName = "antialt"

func (b *Bot) registerCommands() error {
	adminOnly := int64(discordgo.PermissionAdministrator)
	dmAllowed := false
	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     commandName,
			Description:              "Open the Anti-Alt setup menu",
			DefaultMemberPermissions: &adminOnly,
			DMPermission:             &dmAllowed,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Ouvrir le menu de configuration Anti-Alt",
				discordgo.EnglishUS: "Open the Anti-Alt setup menu",
				discordgo.SpanishES: "Abrir el menu de configuracion Anti-Alt",
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
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
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
