package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store holds every guild's anti-alt policy and writes the whole mapping
// to a single JSON file after each mutation.
type Store struct {
	mu       sync.Mutex
	path     string
	logger   *zap.Logger
	policies map[GuildID]GuildPolicy
}

// Open loads the store from path. A missing or malformed file yields an
// empty store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:     path,
		logger:   logger,
		policies: make(map[GuildID]GuildPolicy),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory mapping with the file contents. Entries with
// a bad guild key or value are skipped. A file that is not a JSON object is
// moved aside to path+".corrupt" so the next write cannot destroy it.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	policies := make(map[GuildID]GuildPolicy)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.policies = policies
			return nil
		}
		return fmt.Errorf("read policy file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		aside := s.path + ".corrupt"
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return fmt.Errorf("move malformed policy file aside: %w", renameErr)
		}
		s.logger.Warn("policy file is malformed, starting empty", zap.String("path", s.path), zap.String("moved_to", aside), zap.Error(err))
		s.policies = policies
		return nil
	}

	for key, value := range raw {
		id, err := ParseGuildID(key)
		if err != nil {
			s.logger.Warn("skipping policy entry with invalid guild id", zap.String("key", key))
			continue
		}
		var p GuildPolicy
		if err := json.Unmarshal(value, &p); err != nil {
			s.logger.Warn("skipping malformed policy entry", zap.String("guild_id", key), zap.Error(err))
			continue
		}
		policies[id] = p.normalize()
	}
	s.policies = policies
	return nil
}

// Save writes the full mapping to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Close flushes the store. The store stays usable afterwards.
func (s *Store) Close() error {
	return s.Save()
}

// Get returns the guild's policy, inserting and persisting the default
// policy first if the guild has never been seen.
func (s *Store) Get(guildID GuildID) (GuildPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(guildID)
}

// Update applies mutate to the guild's policy and persists the store. If
// mutate returns an error nothing is changed.
func (s *Store) Update(guildID GuildID, mutate func(*GuildPolicy) error) (GuildPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getOrCreateLocked(guildID)
	if err != nil {
		return GuildPolicy{}, err
	}
	next := current
	if err := mutate(&next); err != nil {
		return current, err
	}
	if next == current {
		return current, nil
	}
	s.policies[guildID] = next
	if err := s.saveLocked(); err != nil {
		s.policies[guildID] = current
		return current, err
	}
	return next, nil
}

func (s *Store) Enable(guildID GuildID) (GuildPolicy, error) {
	return s.Update(guildID, func(p *GuildPolicy) error {
		p.Enabled = true
		return nil
	})
}

func (s *Store) Disable(guildID GuildID) (GuildPolicy, error) {
	return s.Update(guildID, func(p *GuildPolicy) error {
		p.Enabled = false
		return nil
	})
}

func (s *Store) SetThreshold(guildID GuildID, days int) (GuildPolicy, error) {
	return s.Update(guildID, func(p *GuildPolicy) error {
		if err := ValidateThreshold(days); err != nil {
			return err
		}
		p.Threshold = days
		return nil
	})
}

func (s *Store) SetPunishment(guildID GuildID, value string) (GuildPolicy, error) {
	return s.Update(guildID, func(p *GuildPolicy) error {
		punishment, err := ParsePunishment(value)
		if err != nil {
			return err
		}
		p.Punishment = punishment
		return nil
	})
}

// Snapshot returns a copy of the mapping.
func (s *Store) Snapshot() map[GuildID]GuildPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[GuildID]GuildPolicy, len(s.policies))
	for id, p := range s.policies {
		out[id] = p
	}
	return out
}

func (s *Store) getOrCreateLocked(guildID GuildID) (GuildPolicy, error) {
	if guildID == 0 {
		return GuildPolicy{}, ErrInvalidGuildID
	}
	if p, ok := s.policies[guildID]; ok {
		return p, nil
	}
	p := Default()
	s.policies[guildID] = p
	if err := s.saveLocked(); err != nil {
		delete(s.policies, guildID)
		return GuildPolicy{}, err
	}
	return p, nil
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.policies)
	if err != nil {
		return fmt.Errorf("encode policies: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create policy dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp policy file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write policy file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close policy file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace policy file: %w", err)
	}
	return nil
}
