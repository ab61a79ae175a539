package bot

import (
	"context"
	"sync"
	"time"

	"sentinel-antialt/internal/analytics"
	"sentinel-antialt/internal/config"
	"sentinel-antialt/internal/modules/antialt"
	"sentinel-antialt/internal/modules/audit"
	"sentinel-antialt/internal/policy"
	"sentinel-antialt/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	policies  *policy.Store
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	antialt   *antialt.Module
	panel     *Panel

	fetchChannel channelFetcher

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, policies *policy.Store, auditLogger *audit.Logger, analyticsEngine *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		policies:  policies,
		audit:     auditLogger,
		analytics: analyticsEngine,
		session:   session,
		stop:      make(chan struct{}),
	}
	b.fetchChannel = func(channelID string) (*discordgo.Channel, error) {
		return session.Channel(channelID)
	}

	b.antialt = antialt.New(policies, store, auditLogger, logger)
	b.panel = NewPanel(policies, auditLogger, analyticsEngine, cfg.Notifications.EmbedColors, logger)
	if b.audit != nil {
		b.audit.SetNotifier(func(entry storage.AuditLog) {
			if !b.cfg.Notifications.AuditToChannel {
				return
			}
			b.notifyAudit(entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startRetention()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.stop) })

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("background jobs did not stop in time")
	}

	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.antialt.SetBotName(event.User.Username)
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.GuildID == "" {
		return
	}
	ctx := context.Background()
	b.antialt.HandleJoin(ctx, sessionEnforcer{session: session}, event, b.guildName(event.GuildID))
}

func (b *Bot) guildName(guildID string) string {
	if guild, err := b.session.State.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	if guild, err := b.session.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	return "this server"
}

// startRetention prunes old audit rows once a day.
func (b *Bot) startRetention() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			b.cleanupAudit()
			select {
			case <-ticker.C:
			case <-b.stop:
				return
			}
		}
	}()
}

func (b *Bot) cleanupAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil {
		b.logger.Warn("audit cleanup failed", zap.Error(err))
	}
}

// sessionEnforcer carries out punishments through the Discord REST API.
type sessionEnforcer struct {
	session *discordgo.Session
}

func (e sessionEnforcer) SendDM(userID, content string) error {
	channel, err := e.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = e.session.ChannelMessageSend(channel.ID, content)
	return err
}

func (e sessionEnforcer) Kick(guildID, userID, reason string) error {
	return e.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (e sessionEnforcer) Ban(guildID, userID, reason string) error {
	return e.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}
