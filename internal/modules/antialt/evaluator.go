package antialt

import (
	"fmt"
	"time"

	"sentinel-antialt/internal/policy"
)

const day = 24 * time.Hour

// Decision is the outcome of evaluating one join against a guild policy.
type Decision struct {
	Punish     bool
	Punishment policy.Punishment
	AgeDays    int
	Threshold  int
	Message    string
}

// AccountAgeDays truncates the age to whole days. Creation times in the
// future count as zero.
func AccountAgeDays(createdAt, now time.Time) int {
	age := now.UTC().Sub(createdAt.UTC())
	if age <= 0 {
		return 0
	}
	return int(age / day)
}

// Evaluate decides whether a member with the given account age must be
// removed. mention and guildName only feed the notification text.
func Evaluate(p policy.GuildPolicy, ageDays int, mention, guildName string) Decision {
	decision := Decision{AgeDays: ageDays, Threshold: p.Threshold}
	if !p.Enabled || ageDays >= p.Threshold {
		return decision
	}
	decision.Punish = true
	decision.Punishment = p.Punishment
	decision.Message = NotificationMessage(p.Punishment, mention, guildName)
	return decision
}

func NotificationMessage(punishment policy.Punishment, mention, guildName string) string {
	return fmt.Sprintf("%s: you've been %s from **%s** because you don't fulfill the minimum account age requirement to join the guild.", mention, punishment.PastTense(), guildName)
}

// RemovalReason is attached to the kick or ban in the guild audit log.
func RemovalReason(botName string) string {
	if botName == "" {
		botName = "Sentinel"
	}
	return botName + " @ anti-alt triggered : potential alt acc"
}
