package analytics

import (
	"context"
	"time"

	"sentinel-antialt/internal/modules/audit"
	"sentinel-antialt/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

// Report summarizes anti-alt activity for one guild.
type Report struct {
	Total   int
	Kicks   int
	Bans    int
	Failed  int
	ByLevel map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		switch log.Event {
		case audit.EventAltKick:
			report.Kicks++
		case audit.EventAltBan:
			report.Bans++
		case audit.EventAltFailed:
			report.Failed++
		}
	}
	return report, nil
}
