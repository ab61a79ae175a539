package antialt

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"sentinel-antialt/internal/modules/audit"
	"sentinel-antialt/internal/policy"
	"sentinel-antialt/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const discordEpochMillis = 1420070400000

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type fakeEnforcer struct {
	dmErr   error
	kickErr error
	calls   []string
	dms     []string
	reasons []string
}

func (f *fakeEnforcer) SendDM(userID, content string) error {
	f.calls = append(f.calls, "dm:"+userID)
	f.dms = append(f.dms, content)
	return f.dmErr
}

func (f *fakeEnforcer) Kick(guildID, userID, reason string) error {
	f.calls = append(f.calls, "kick:"+guildID+":"+userID)
	f.reasons = append(f.reasons, reason)
	return f.kickErr
}

func (f *fakeEnforcer) Ban(guildID, userID, reason string) error {
	f.calls = append(f.calls, "ban:"+guildID+":"+userID)
	f.reasons = append(f.reasons, reason)
	return nil
}

func snowflakeAt(t time.Time) string {
	return strconv.FormatInt((t.UnixMilli()-discordEpochMillis)<<22, 10)
}

type fixture struct {
	module   *Module
	policies *policy.Store
	store    *storage.Store
	now      time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	policies, err := policy.Open(filepath.Join(t.TempDir(), "alt.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("open policies: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module := New(policies, store, audit.NewLogger(store, zap.NewNop()), zap.NewNop())
	module.WithClock(fakeClock{now: now})
	module.SetBotName("Sentinel")
	return fixture{module: module, policies: policies, store: store, now: now}
}

func joinEvent(guildID string, created time.Time) *discordgo.GuildMemberAdd {
	return &discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: snowflakeAt(created), Username: "newbie"},
	}}
}

func TestAccountAgeDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := AccountAgeDays(now.Add(-10*day-time.Hour), now); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := AccountAgeDays(now.Add(-23*time.Hour), now); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := AccountAgeDays(now.Add(time.Hour), now); got != 0 {
		t.Fatalf("expected 0 for future creation, got %d", got)
	}
}

func TestEvaluate(t *testing.T) {
	enabled := policy.GuildPolicy{Enabled: true, Threshold: 30, Punishment: policy.PunishKick}

	decision := Evaluate(enabled, 10, "<@1>", "Cozy Guild")
	if !decision.Punish || decision.Punishment != policy.PunishKick {
		t.Fatalf("expected kick, got %+v", decision)
	}
	if !strings.Contains(decision.Message, "Cozy Guild") || !strings.Contains(decision.Message, "kicked") {
		t.Fatalf("unexpected message %q", decision.Message)
	}

	lowered := enabled
	lowered.Threshold = 5
	if decision := Evaluate(lowered, 10, "<@1>", "Cozy Guild"); decision.Punish {
		t.Fatalf("expected no action, got %+v", decision)
	}

	if decision := Evaluate(enabled, 30, "<@1>", "Cozy Guild"); decision.Punish {
		t.Fatalf("expected no action at threshold, got %+v", decision)
	}

	for _, age := range []int{0, 10, 5000} {
		if decision := Evaluate(policy.Default(), age, "<@1>", "Cozy Guild"); decision.Punish {
			t.Fatalf("disabled policy punished age %d", age)
		}
	}

	banned := enabled
	banned.Punishment = policy.PunishBan
	if decision := Evaluate(banned, 1, "<@1>", "Cozy Guild"); decision.Punishment != policy.PunishBan || !strings.Contains(decision.Message, "banned") {
		t.Fatalf("expected ban, got %+v", decision)
	}
}

func TestHandleJoinKicksNewAccount(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.policies.Enable(111); err != nil {
		t.Fatalf("enable: %v", err)
	}

	enforcer := &fakeEnforcer{}
	event := joinEvent("111", fx.now.Add(-10*day))
	decision := fx.module.HandleJoin(context.Background(), enforcer, event, "Cozy Guild")

	if !decision.Punish || decision.AgeDays != 10 {
		t.Fatalf("unexpected decision %+v", decision)
	}
	userID := event.Member.User.ID
	want := []string{"dm:" + userID, "kick:111:" + userID}
	if strings.Join(enforcer.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("expected calls %v, got %v", want, enforcer.calls)
	}
	if !strings.Contains(enforcer.dms[0], "Cozy Guild") {
		t.Fatalf("dm missing guild name: %q", enforcer.dms[0])
	}
	if enforcer.reasons[0] != "Sentinel @ anti-alt triggered : potential alt acc" {
		t.Fatalf("unexpected reason %q", enforcer.reasons[0])
	}

	logs, err := fx.store.ListAuditLogs(context.Background(), "111", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != audit.EventAltKick {
		t.Fatalf("unexpected audit logs %+v", logs)
	}
	rec, err := fx.store.GetEnforcement(context.Background(), "111", userID, category)
	if err != nil || rec.CountTotal != 1 {
		t.Fatalf("expected one enforcement record, got %+v %v", rec, err)
	}
}

func TestHandleJoinBansWhenConfigured(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.policies.Enable(222); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := fx.policies.SetPunishment(222, "Ban"); err != nil {
		t.Fatalf("punishment: %v", err)
	}

	enforcer := &fakeEnforcer{}
	fx.module.HandleJoin(context.Background(), enforcer, joinEvent("222", fx.now.Add(-2*day)), "Cozy Guild")
	if len(enforcer.calls) != 2 || !strings.HasPrefix(enforcer.calls[1], "ban:222:") {
		t.Fatalf("expected ban, got %v", enforcer.calls)
	}
}

func TestHandleJoinRemovesWhenDMFails(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.policies.Enable(333); err != nil {
		t.Fatalf("enable: %v", err)
	}

	enforcer := &fakeEnforcer{dmErr: errors.New("cannot send messages to this user")}
	fx.module.HandleJoin(context.Background(), enforcer, joinEvent("333", fx.now.Add(-1*day)), "Cozy Guild")
	if len(enforcer.calls) != 2 || !strings.HasPrefix(enforcer.calls[1], "kick:") {
		t.Fatalf("expected kick after failed dm, got %v", enforcer.calls)
	}
}

func TestHandleJoinLogsFailedRemoval(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.policies.Enable(444); err != nil {
		t.Fatalf("enable: %v", err)
	}

	enforcer := &fakeEnforcer{kickErr: errors.New("missing permissions")}
	fx.module.HandleJoin(context.Background(), enforcer, joinEvent("444", fx.now.Add(-1*day)), "Cozy Guild")

	logs, err := fx.store.ListAuditLogs(context.Background(), "444", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != audit.EventAltFailed {
		t.Fatalf("expected failure audit, got %+v", logs)
	}
}

func TestHandleJoinIgnoresOldOrDisabled(t *testing.T) {
	fx := newFixture(t)

	enforcer := &fakeEnforcer{}
	fx.module.HandleJoin(context.Background(), enforcer, joinEvent("555", fx.now.Add(-1*day)), "Cozy Guild")
	if len(enforcer.calls) != 0 {
		t.Fatalf("disabled guild must not punish, got %v", enforcer.calls)
	}
	if _, ok := fx.policies.Snapshot()[555]; !ok {
		t.Fatalf("expected default policy to be created on join")
	}

	if _, err := fx.policies.Enable(555); err != nil {
		t.Fatalf("enable: %v", err)
	}
	fx.module.HandleJoin(context.Background(), enforcer, joinEvent("555", fx.now.Add(-400*day)), "Cozy Guild")
	if len(enforcer.calls) != 0 {
		t.Fatalf("old account must not be punished, got %v", enforcer.calls)
	}
}

func TestHandleJoinSkipsMalformedEvents(t *testing.T) {
	fx := newFixture(t)
	enforcer := &fakeEnforcer{}

	fx.module.HandleJoin(context.Background(), enforcer, nil, "")
	fx.module.HandleJoin(context.Background(), enforcer, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "666"}}, "")
	fx.module.HandleJoin(context.Background(), enforcer, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "", User: &discordgo.User{ID: "1"}}}, "")
	if len(enforcer.calls) != 0 {
		t.Fatalf("expected no calls, got %v", enforcer.calls)
	}
}
