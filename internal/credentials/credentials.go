// Package credentials holds upload credentials and their optional persistence.
//
// Credentials are opaque: they are sent as HTTP Basic auth and never
// validated locally. Persistence is opt-in ("remember"); turning it off
// removes anything previously stored.
package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// StorageKey is the fixed key remembered credentials are stored under.
const StorageKey = "upload_auth_v1"

// Credentials identify the uploader to the backend.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Complete reports whether both fields are non-empty.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// BasicAuth returns the Authorization header value for c.
func (c Credentials) BasicAuth() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	return "Basic " + token
}

// KV is the persistence capability credentials are stored in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store loads and saves remembered credentials.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns remembered credentials. The boolean is false when nothing usable is stored.
func (s *Store) Load(ctx context.Context) (Credentials, bool, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil || !ok {
		return Credentials{}, false, err
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("decode stored credentials: %w", err)
	}
	return creds, creds.Complete(), nil
}

// Save persists creds when remember is true and clears any stored value otherwise.
func (s *Store) Save(ctx context.Context, creds Credentials, remember bool) error {
	if !remember {
		return s.Forget(ctx)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.kv.Set(ctx, StorageKey, string(data))
}

// Forget removes remembered credentials.
func (s *Store) Forget(ctx context.Context) error {
	return s.kv.Delete(ctx, StorageKey)
}
