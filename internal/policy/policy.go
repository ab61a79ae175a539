package policy

import (
	"errors"
	"strconv"
	"strings"
)

const (
	MinThreshold     = 1
	MaxThreshold     = 3650
	DefaultThreshold = 30
)

var (
	ErrThresholdRange     = errors.New("threshold must be between 1 and 3650 days")
	ErrThresholdNotNumber = errors.New("threshold is not a number")
	ErrUnknownPunishment  = errors.New("unknown punishment")
	ErrInvalidGuildID     = errors.New("invalid guild id")
)

// Punishment is the action applied to a member whose account is too new.
type Punishment string

const (
	PunishKick Punishment = "kick"
	PunishBan  Punishment = "ban"
)

// ParsePunishment accepts kick or ban in any letter case.
func ParsePunishment(value string) (Punishment, error) {
	switch Punishment(strings.ToLower(strings.TrimSpace(value))) {
	case PunishKick:
		return PunishKick, nil
	case PunishBan:
		return PunishBan, nil
	default:
		return "", ErrUnknownPunishment
	}
}

func (p Punishment) Valid() bool {
	return p == PunishKick || p == PunishBan
}

// Label is the capitalized form shown in the select menu.
func (p Punishment) Label() string {
	switch p {
	case PunishBan:
		return "Ban"
	default:
		return "Kick"
	}
}

// PastTense is used in member notifications.
func (p Punishment) PastTense() string {
	switch p {
	case PunishBan:
		return "banned"
	default:
		return "kicked"
	}
}

// GuildPolicy is the anti-alt configuration of one guild.
type GuildPolicy struct {
	Enabled    bool       `json:"enabled"`
	Threshold  int        `json:"threshold"`
	Punishment Punishment `json:"punishment"`
}

func Default() GuildPolicy {
	return GuildPolicy{Enabled: false, Threshold: DefaultThreshold, Punishment: PunishKick}
}

func (p GuildPolicy) Status() string {
	if p.Enabled {
		return "enabled"
	}
	return "disabled"
}

func ValidateThreshold(days int) error {
	if days < MinThreshold || days > MaxThreshold {
		return ErrThresholdRange
	}
	return nil
}

// ParseThreshold converts free-text modal input into a day count.
func ParseThreshold(value string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, ErrThresholdNotNumber
	}
	if err := ValidateThreshold(days); err != nil {
		return 0, err
	}
	return days, nil
}

// normalize repairs entries written by hand or by older versions.
func (p GuildPolicy) normalize() GuildPolicy {
	if ValidateThreshold(p.Threshold) != nil {
		p.Threshold = DefaultThreshold
	}
	if parsed, err := ParsePunishment(string(p.Punishment)); err == nil {
		p.Punishment = parsed
	} else {
		p.Punishment = PunishKick
	}
	return p
}

// GuildID is a Discord snowflake identifying a guild.
type GuildID uint64

func ParseGuildID(value string) (GuildID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidGuildID
	}
	return GuildID(id), nil
}

func (id GuildID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
