package config

import (
	"fmt"
	"strings"

	"video-transcriber/domain/notification"
)

// RecipientLookup resolves report recipients from the address book
type RecipientLookup struct {
	config *Config
}

// NewRecipientLookup creates a new recipient lookup from config
func NewRecipientLookup(cfg *Config) *RecipientLookup {
	return &RecipientLookup{config: cfg}
}

// LookupRecipient finds recipients matching the query (first name, last name, full name, or key)
// Returns all matches - caller should handle ambiguity
func (r *RecipientLookup) LookupRecipient(query string) ([]notification.Recipient, error) {
	query = normalizeKey(query)
	if query == "" {
		return nil, ErrRecipientNotFound
	}

	if strings.Contains(query, "@") && isValidEmail(query) {
		return []notification.Recipient{{Address: query}}, nil
	}

	var matches []notification.Recipient
	for key, rc := range r.config.Notify.Recipients {
		nameLower := strings.ToLower(rc.Name)
		nameParts := strings.Fields(nameLower)

		var first, last string
		if len(nameParts) > 0 {
			first = nameParts[0]
		}
		if len(nameParts) > 1 {
			last = nameParts[len(nameParts)-1]
		}

		if strings.ToLower(key) == query || first == query || last == query || nameLower == query {
			matches = append(matches, notification.Recipient{Name: rc.Name, Address: rc.Address})
		}
	}

	if len(matches) == 0 {
		return nil, ErrRecipientNotFound
	}

	return matches, nil
}

// LookupRecipients looks up multiple recipients by query strings
// Supports comma-separated or multiple queries
func (r *RecipientLookup) LookupRecipients(queries []string) ([]notification.Recipient, error) {
	var all []notification.Recipient
	seen := make(map[string]bool)

	for _, q := range queries {
		for _, query := range strings.Split(q, ",") {
			query = strings.TrimSpace(query)
			if query == "" {
				continue
			}

			matches, err := r.LookupRecipient(query)
			if err != nil {
				return nil, fmt.Errorf("recipient %q: %w", query, err)
			}

			if len(matches) > 1 {
				names := make([]string, len(matches))
				for i, m := range matches {
					names[i] = m.Name
				}
				return nil, fmt.Errorf("%w: %q matches %s - use last name to disambiguate",
					ErrAmbiguousRecipient, query, strings.Join(names, ", "))
			}

			if !seen[matches[0].Address] {
				seen[matches[0].Address] = true
				all = append(all, matches[0])
			}
		}
	}

	if len(all) == 0 {
		return nil, ErrRecipientNotFound
	}

	return all, nil
}

// DefaultTo resolves the configured notify.to keys
func (r *RecipientLookup) DefaultTo() ([]notification.Recipient, error) {
	if len(r.config.Notify.To) == 0 {
		return nil, ErrRecipientNotFound
	}
	return r.LookupRecipients(r.config.Notify.To)
}

// DefaultCC returns the configured default CC recipients
func (r *RecipientLookup) DefaultCC() []notification.Recipient {
	cc := make([]notification.Recipient, len(r.config.Notify.DefaultCC))
	for i, rc := range r.config.Notify.DefaultCC {
		cc[i] = notification.Recipient{Name: rc.Name, Address: rc.Address}
	}
	return cc
}

// Sender returns the configured from address
func (r *RecipientLookup) Sender() notification.Recipient {
	return notification.Recipient{Name: r.config.Notify.FromName, Address: r.config.Notify.FromAddress}
}
