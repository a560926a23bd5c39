package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xnotehq/xnote/internal/filter"
	"github.com/xnotehq/xnote/internal/types"
)

// ruleExport is the interchange format for sharing rule sets.
type ruleExport struct {
	Rules          []types.FilterRule `json:"rules"`
	WhitelistUsers []string           `json:"whitelist_users"`
	ExportedAt     time.Time          `json:"exported_at"`
}

// ExportRules serializes the current rules and user whitelist to JSON.
func (s *Store) ExportRules() ([]byte, error) {
	settings, err := s.FilterSettings()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(ruleExport{
		Rules:          settings.Rules,
		WhitelistUsers: settings.WhitelistUsers,
		ExportedAt:     time.Now(),
	}, "", "  ")
}

// ImportRules merges an exported rule set into the current settings. Rules
// whose pattern already exists are skipped, as are rules with invalid regex
// patterns. Returns the number of rules added.
func (s *Store) ImportRules(data []byte) (int, error) {
	var in ruleExport
	if err := json.Unmarshal(data, &in); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}

	settings, err := s.FilterSettings()
	if err != nil {
		return 0, err
	}

	existing := make(map[string]struct{}, len(settings.Rules))
	for _, r := range settings.Rules {
		existing[r.Pattern] = struct{}{}
	}

	added := 0
	for _, r := range in.Rules {
		if _, dup := existing[r.Pattern]; dup {
			continue
		}
		if r.IsRegex {
			if err := filter.ValidatePattern(r.Pattern); err != nil {
				continue
			}
		}
		if r.ID == "" {
			r.ID = NewRuleID()
		}
		settings.Rules = append(settings.Rules, r)
		existing[r.Pattern] = struct{}{}
		added++
	}

	seen := make(map[string]struct{}, len(settings.WhitelistUsers))
	for _, u := range settings.WhitelistUsers {
		seen[u] = struct{}{}
	}
	for _, u := range in.WhitelistUsers {
		if _, dup := seen[u]; !dup {
			settings.WhitelistUsers = append(settings.WhitelistUsers, u)
			seen[u] = struct{}{}
		}
	}

	if added > 0 || len(in.WhitelistUsers) > 0 {
		if err := s.SaveFilterSettings(settings); err != nil {
			return 0, err
		}
	}
	return added, nil
}

// NewRuleID generates a unique rule identifier.
func NewRuleID() string {
	return fmt.Sprintf("rule_%d", time.Now().UnixNano())
}
