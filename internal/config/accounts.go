package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================
//
// The account store maps each provider to the customer accounts held with it:
//
//   {
//     "monroe": {"sucursal centro": 123456, "sucursal norte": "654321"},
//     "keller": {"depo": 900}
//   }
//
// Provider keys are matched case-insensitively, labels exactly. Account ids
// may be numbers or strings and are always returned as text.
//
// =============================================================================

// ErrAccountNotFound is returned when a provider or label is not in the store.
var ErrAccountNotFound = errors.New("account not found")

// Account is one labelled account of a provider.
type Account struct {
	Label string
	ID    string
}

// AccountStore is a read-only provider -> label -> account id table.
type AccountStore struct {
	accounts map[string]map[string]string
}

// NewAccountStore builds a store from an in-memory table.
func NewAccountStore(accounts map[string]map[string]string) *AccountStore {
	s := &AccountStore{accounts: make(map[string]map[string]string, len(accounts))}
	for provider, labels := range accounts {
		key := strings.ToLower(strings.TrimSpace(provider))
		if s.accounts[key] == nil {
			s.accounts[key] = make(map[string]string, len(labels))
		}
		for label, id := range labels {
			s.accounts[key][label] = id
		}
	}
	return s
}

// LoadAccounts reads a JSON (.json) or YAML (.yaml, .yml) account store.
//
// RETURNS:
//   - The store.
//   - An error if the file is missing, malformed, or an id is not a scalar.
func LoadAccounts(path string) (*AccountStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read account store: %w", err)
	}

	raw := make(map[string]map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse account store %s: %w", path, err)
	}

	accounts := make(map[string]map[string]string, len(raw))
	for provider, labels := range raw {
		accounts[provider] = make(map[string]string, len(labels))
		for label, v := range labels {
			id, err := accountID(v)
			if err != nil {
				return nil, fmt.Errorf("account store %s: %s/%s: %w", path, provider, label, err)
			}
			accounts[provider][label] = id
		}
	}
	return NewAccountStore(accounts), nil
}

func accountID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id), nil
	case json.Number:
		return id.String(), nil
	case int:
		return fmt.Sprintf("%d", id), nil
	case int64:
		return fmt.Sprintf("%d", id), nil
	case uint64:
		return fmt.Sprintf("%d", id), nil
	case float64:
		return fmt.Sprintf("%.0f", id), nil
	default:
		return "", fmt.Errorf("unsupported account id type %T", v)
	}
}

// Lookup returns the account id stored under provider and label.
func (s *AccountStore) Lookup(provider, label string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: no account store loaded", ErrAccountNotFound)
	}
	labels, ok := s.accounts[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return "", fmt.Errorf("%w: no accounts for provider %q", ErrAccountNotFound, provider)
	}
	id, ok := labels[label]
	if !ok {
		return "", fmt.Errorf("%w: provider %q has no account %q", ErrAccountNotFound, provider, label)
	}
	return id, nil
}

// Resolve returns the id stored under label, or value itself when it is not
// a known label (a literal account id).
func (s *AccountStore) Resolve(provider, value string) string {
	if s == nil {
		return value
	}
	if id, err := s.Lookup(provider, value); err == nil {
		return id
	}
	return value
}

// Providers returns the providers in the store, sorted.
func (s *AccountStore) Providers() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.accounts))
	for p := range s.accounts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Accounts returns the accounts of a provider sorted by label.
func (s *AccountStore) Accounts(provider string) []Account {
	if s == nil {
		return nil
	}
	labels := s.accounts[strings.ToLower(strings.TrimSpace(provider))]
	out := make([]Account, 0, len(labels))
	for label, id := range labels {
		out = append(out, Account{Label: label, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
