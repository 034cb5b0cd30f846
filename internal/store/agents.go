package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefixLen = 8

// AgentAuth is the credential row the HTTP auth middleware verifies
// against.
type AgentAuth struct {
	ID         string
	Name       string
	APIKeyHash string
}

// Agent is an agent row without credentials.
type Agent struct {
	ID           string
	Name         string
	APIKeyPrefix string
	CreatedAt    time.Time
}

// LookupAgentByKeyPrefix returns the agent whose API key starts with
// prefix, or nil if none exists.
func (s *Store) LookupAgentByKeyPrefix(ctx context.Context, prefix string) (*AgentAuth, error) {
	var a AgentAuth
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash FROM agents WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupAgentByKeyPrefix: %w", err)
	}
	return &a, nil
}

// CreateAgent inserts a new agent and returns it together with the
// plaintext API key, which is shown once and stored only as a bcrypt hash.
func (s *Store) CreateAgent(ctx context.Context, name string) (*Agent, string, error) {
	key, err := generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateAgent: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("CreateAgent: %w", err)
	}

	a := &Agent{
		ID:           uuid.New().String(),
		Name:         name,
		APIKeyPrefix: key[:apiKeyPrefixLen],
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO agents (id, name, api_key_prefix, api_key_hash, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`,
		a.ID, a.Name, a.APIKeyPrefix, string(hash),
	).Scan(&a.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateAgent: %w", err)
	}
	return a, key, nil
}

// generateAPIKey produces an "agk_" key with 128 bits of entropy.
func generateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "agk_" + hex.EncodeToString(buf), nil
}
