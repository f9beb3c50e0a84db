package config

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// Errors for config management
var (
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrAmbiguousRecipient = errors.New("ambiguous recipient")
	ErrCCNotFound         = errors.New("cc not found")
	ErrDuplicateKey       = errors.New("key already exists")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// Manager provides CRUD operations for the report-email address book
type Manager struct {
	config     *Config
	configPath string
}

// NewManager creates a new config manager that saves to configPath
func NewManager(cfg *Config, configPath string) *Manager {
	return &Manager{
		config:     cfg,
		configPath: configPath,
	}
}

// Recipient represents an address-book entry (used for both recipients and CCs)
type Recipient struct {
	Key     string
	Name    string
	Address string
}

// --- Recipient CRUD ---

// AddRecipient adds a new recipient to config
func (m *Manager) AddRecipient(key, name, email string) error {
	key = normalizeKey(key)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if key == "" {
		return fmt.Errorf("recipient key is required")
	}
	if name == "" {
		return fmt.Errorf("recipient name is required")
	}
	if !isValidEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	if m.config.Notify.Recipients == nil {
		m.config.Notify.Recipients = make(map[string]RecipientConfig)
	}

	if _, exists := m.config.Notify.Recipients[key]; exists {
		return fmt.Errorf("%w: recipient %q", ErrDuplicateKey, key)
	}

	m.config.Notify.Recipients[key] = RecipientConfig{Name: name, Address: email}
	return Save(m.config, m.configPath)
}

// ListRecipients returns all recipients sorted by key
func (m *Manager) ListRecipients() []Recipient {
	result := make([]Recipient, 0, len(m.config.Notify.Recipients))
	for key, rc := range m.config.Notify.Recipients {
		result = append(result, Recipient{Key: key, Name: rc.Name, Address: rc.Address})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// RemoveRecipient removes a recipient by key and drops it from the default To list
func (m *Manager) RemoveRecipient(key string) error {
	key = normalizeKey(key)
	if _, exists := m.config.Notify.Recipients[key]; !exists {
		return fmt.Errorf("%w: %q", ErrRecipientNotFound, key)
	}

	delete(m.config.Notify.Recipients, key)

	to := m.config.Notify.To[:0]
	for _, k := range m.config.Notify.To {
		if normalizeKey(k) != key {
			to = append(to, k)
		}
	}
	m.config.Notify.To = to

	return Save(m.config, m.configPath)
}

// SetDefaultTo replaces the list of recipient keys that receive every report
func (m *Manager) SetDefaultTo(keys []string) error {
	normalized := make([]string, 0, len(keys))
	for _, k := range keys {
		k = normalizeKey(k)
		if _, exists := m.config.Notify.Recipients[k]; !exists {
			return fmt.Errorf("%w: %q", ErrRecipientNotFound, k)
		}
		normalized = append(normalized, k)
	}
	m.config.Notify.To = normalized
	return Save(m.config, m.configPath)
}

// --- CC CRUD ---

// AddCC adds a new default CC recipient
func (m *Manager) AddCC(name, email string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return fmt.Errorf("cc name is required")
	}
	if !isValidEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	if _, _, err := m.GetCC(firstName(name)); err == nil {
		return fmt.Errorf("%w: cc %q", ErrDuplicateKey, firstName(name))
	}

	m.config.Notify.DefaultCC = append(m.config.Notify.DefaultCC, RecipientConfig{
		Name:    name,
		Address: email,
	})

	return Save(m.config, m.configPath)
}

// ListCCs returns all default CC recipients keyed by first name
func (m *Manager) ListCCs() []Recipient {
	result := make([]Recipient, 0, len(m.config.Notify.DefaultCC))
	for i, cc := range m.config.Notify.DefaultCC {
		key := firstName(cc.Name)
		if key == "" {
			key = fmt.Sprintf("cc%d", i)
		}
		result = append(result, Recipient{Key: key, Name: cc.Name, Address: cc.Address})
	}
	return result
}

// GetCC gets a CC by first or full name, case-insensitive
func (m *Manager) GetCC(key string) (Recipient, int, error) {
	key = normalizeKey(key)
	for i, cc := range m.config.Notify.DefaultCC {
		if firstName(cc.Name) == key || strings.ToLower(cc.Name) == key {
			return Recipient{Key: firstName(cc.Name), Name: cc.Name, Address: cc.Address}, i, nil
		}
	}
	return Recipient{}, -1, fmt.Errorf("%w: %q", ErrCCNotFound, key)
}

// RemoveCC removes a CC by key
func (m *Manager) RemoveCC(key string) error {
	_, idx, err := m.GetCC(key)
	if err != nil {
		return err
	}

	m.config.Notify.DefaultCC = append(
		m.config.Notify.DefaultCC[:idx],
		m.config.Notify.DefaultCC[idx+1:]...,
	)
	return Save(m.config, m.configPath)
}

// --- Sender ---

// SetSender sets the name and address reports are sent from
func (m *Manager) SetSender(name, email string) error {
	email = strings.TrimSpace(email)
	if !isValidEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	m.config.Notify.FromName = strings.TrimSpace(name)
	m.config.Notify.FromAddress = email
	return Save(m.config, m.configPath)
}

// SuggestAddRecipientCommand returns the command to add a missing entry
func SuggestAddRecipientCommand(key string) string {
	return fmt.Sprintf("video-transcriber config add recipient --key %s --name \"Full Name\" --email address@example.com", key)
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return strings.Contains(email[at+1:], ".")
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func firstName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
