package antialt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sentinel-antialt/internal/modules/audit"
	"sentinel-antialt/internal/policy"
	"sentinel-antialt/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const category = "anti_alt"

var errMissingMember = errors.New("join event has no member")

// Enforcer performs the outbound calls needed to punish a member.
type Enforcer interface {
	SendDM(userID, content string) error
	Kick(guildID, userID, reason string) error
	Ban(guildID, userID, reason string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Module struct {
	policies *policy.Store
	records  *storage.Store
	audit    *audit.Logger
	logger   *zap.Logger
	clock    Clock

	nameMu  sync.RWMutex
	botName string
}

func New(policies *policy.Store, records *storage.Store, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		policies: policies,
		records:  records,
		audit:    auditLogger,
		logger:   logger,
		clock:    realClock{},
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// SetBotName sets the name used in removal reasons.
func (m *Module) SetBotName(name string) {
	m.nameMu.Lock()
	defer m.nameMu.Unlock()
	m.botName = name
}

func (m *Module) reason() string {
	m.nameMu.RLock()
	defer m.nameMu.RUnlock()
	return RemovalReason(m.botName)
}

// HandleJoin evaluates a new member and removes them if their account is
// younger than the guild threshold. Failures are logged, never returned.
func (m *Module) HandleJoin(ctx context.Context, enforcer Enforcer, event *discordgo.GuildMemberAdd, guildName string) Decision {
	guildID, user, err := joinSubject(event)
	if err != nil {
		m.logger.Debug("anti-alt skipped join", zap.Error(err))
		return Decision{}
	}

	createdAt, err := discordgo.SnowflakeTimestamp(user.ID)
	if err != nil {
		m.logger.Warn("anti-alt could not read account creation time", zap.String("user_id", user.ID), zap.Error(err))
		return Decision{}
	}

	p, err := m.policies.Get(guildID)
	if err != nil {
		m.logger.Error("anti-alt policy lookup failed", zap.String("guild_id", guildID.String()), zap.Error(err))
		return Decision{}
	}

	decision := Evaluate(p, AccountAgeDays(createdAt, m.clock.Now()), user.Mention(), guildName)
	if !decision.Punish {
		return decision
	}

	if err := enforcer.SendDM(user.ID, decision.Message); err != nil {
		m.logger.Warn("anti-alt notification failed", zap.String("guild_id", guildID.String()), zap.String("user_id", user.ID), zap.Error(err))
	}

	reason := m.reason()
	switch decision.Punishment {
	case policy.PunishBan:
		err = enforcer.Ban(guildID.String(), user.ID, reason)
	default:
		err = enforcer.Kick(guildID.String(), user.ID, reason)
	}
	if err != nil {
		m.logger.Error("anti-alt removal failed", zap.String("guild_id", guildID.String()), zap.String("user_id", user.ID), zap.String("punishment", string(decision.Punishment)), zap.Error(err))
		m.audit.Log(ctx, audit.LevelWarn, guildID.String(), user.ID, audit.EventAltFailed, fmt.Sprintf("action=%s error=%v", decision.Punishment, err))
		return decision
	}

	attempts := 0
	if m.records != nil {
		attempts, err = m.records.RecordEnforcement(ctx, guildID.String(), user.ID, category, string(decision.Punishment), m.clock.Now())
		if err != nil {
			m.logger.Warn("anti-alt enforcement record failed", zap.Error(err))
		}
	}

	level, auditEvent := audit.LevelWarn, audit.EventAltKick
	if decision.Punishment == policy.PunishBan {
		level, auditEvent = audit.LevelCrit, audit.EventAltBan
	}
	detail := fmt.Sprintf("action=%s age_days=%d threshold=%d attempts=%d", decision.Punishment, decision.AgeDays, decision.Threshold, attempts)
	m.audit.Log(ctx, level, guildID.String(), user.ID, auditEvent, detail)
	return decision
}

func joinSubject(event *discordgo.GuildMemberAdd) (policy.GuildID, *discordgo.User, error) {
	if event == nil || event.Member == nil || event.Member.User == nil {
		return 0, nil, errMissingMember
	}
	guildID, err := policy.ParseGuildID(event.Member.GuildID)
	if err != nil {
		return 0, nil, err
	}
	return guildID, event.Member.User, nil
}
