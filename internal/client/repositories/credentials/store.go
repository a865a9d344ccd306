// Package credentials persists the session token and the cached profile as
// versioned records in the device-local key/value store.
//
// Record layout (key → JSON):
//
//	token → {"v":1,"token":"<opaque>"}
//	user  → {"v":1,"user":{...profile...}}
//
// A bare token string stored by older clients under "token" is read as
// version 0.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/kv"
	"github.com/dmitrijs2005/codrive/internal/common"
)

// CurrentVersion is written by this client.
const CurrentVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported record version")

type tokenRecord struct {
	V     int    `json:"v"`
	Token string `json:"token"`
}

type profileRecord struct {
	V    int            `json:"v"`
	User models.Profile `json:"user"`
}

type Store struct {
	kv kv.Repository
}

func NewStore(repo kv.Repository) *Store {
	return &Store{kv: repo}
}

// LoadToken returns the persisted token, or "" when none is stored.
func (s *Store) LoadToken(ctx context.Context) (string, error) {
	raw, err := s.kv.Get(ctx, common.TokenKey)
	if err != nil {
		return "", err
	}
	return decodeToken(raw)
}

// LoadProfile returns the cached profile, or nil when none is stored.
func (s *Store) LoadProfile(ctx context.Context) (*models.Profile, error) {
	raw, err := s.kv.Get(ctx, common.ProfileKey)
	if err != nil || raw == nil {
		return nil, err
	}

	var rec profileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode profile record: %w", err)
	}
	if rec.V != CurrentVersion {
		return nil, fmt.Errorf("profile record v%d: %w", rec.V, ErrUnsupportedVersion)
	}
	return &rec.User, nil
}

// SaveSession writes token and profile atomically.
func (s *Store) SaveSession(ctx context.Context, token string, profile models.Profile) error {
	tokenData, err := json.Marshal(tokenRecord{V: CurrentVersion, Token: token})
	if err != nil {
		return err
	}
	profileData, err := json.Marshal(profileRecord{V: CurrentVersion, User: profile})
	if err != nil {
		return err
	}

	return s.kv.WithinTx(ctx, func(ctx context.Context, tx kv.Repository) error {
		if err := tx.Set(ctx, common.TokenKey, tokenData); err != nil {
			return err
		}
		return tx.Set(ctx, common.ProfileKey, profileData)
	})
}

// SaveProfile replaces the cached profile, leaving the token alone.
func (s *Store) SaveProfile(ctx context.Context, profile models.Profile) error {
	data, err := json.Marshal(profileRecord{V: CurrentVersion, User: profile})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, common.ProfileKey, data)
}

// Clear removes both records. Other keys in the store are untouched.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.WithinTx(ctx, func(ctx context.Context, tx kv.Repository) error {
		if err := tx.Delete(ctx, common.TokenKey); err != nil {
			return err
		}
		return tx.Delete(ctx, common.ProfileKey)
	})
}

func decodeToken(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}
	if raw[0] != '{' {
		return string(raw), nil
	}

	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("decode token record: %w", err)
	}
	if rec.V > CurrentVersion {
		return "", fmt.Errorf("token record v%d: %w", rec.V, ErrUnsupportedVersion)
	}
	return rec.Token, nil
}
