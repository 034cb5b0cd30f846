package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ts-31/archestra-sub000/internal/policy"
)

// InvocationPolicyRecord is a persisted invocation policy with its storage
// metadata. Position makes rule evaluation order explicit instead of
// relying on insertion order.
type InvocationPolicyRecord struct {
	policy.ToolInvocationPolicy
	AgentID   string
	ToolName  string
	Position  int
	CreatedAt time.Time
}

// TrustedDataPolicyRecord is a persisted trusted data policy with its
// storage metadata.
type TrustedDataPolicyRecord struct {
	policy.TrustedDataPolicy
	AgentID   string
	ToolName  string
	Position  int
	CreatedAt time.Time
}

// GetSecurityConfig returns the assignment's security defaults, or nil if
// the tool is not registered for the agent.
func (s *Store) GetSecurityConfig(ctx context.Context, agentID, toolName string) (*policy.SecurityConfig, error) {
	var cfg policy.SecurityConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT allow_when_untrusted, result_treatment
		FROM agent_tools
		WHERE agent_id = $1 AND tool_name = $2`,
		agentID, toolName,
	).Scan(&cfg.AllowWhenUntrusted, &cfg.ResultTreatment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetSecurityConfig: %w", err)
	}
	return &cfg, nil
}

// UpsertSecurityConfig registers the tool for the agent or updates its
// security defaults.
func (s *Store) UpsertSecurityConfig(ctx context.Context, agentID, toolName string, cfg policy.SecurityConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_tools (agent_id, tool_name, allow_when_untrusted, result_treatment, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (agent_id, tool_name) DO UPDATE SET
			allow_when_untrusted = EXCLUDED.allow_when_untrusted,
			result_treatment     = EXCLUDED.result_treatment`,
		agentID, toolName, cfg.AllowWhenUntrusted, string(cfg.ResultTreatment))
	if err != nil {
		return fmt.Errorf("UpsertSecurityConfig: %w", err)
	}
	s.cache.invalidate(agentID, toolName)
	return nil
}

// ListInvocationPolicies returns the assignment's invocation policies in
// evaluation order.
func (s *Store) ListInvocationPolicies(ctx context.Context, agentID, toolName string) ([]InvocationPolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, argument_path, operator, value, action, COALESCE(reason, ''), position, created_at
		FROM tool_invocation_policies
		WHERE agent_id = $1 AND tool_name = $2
		ORDER BY position`,
		agentID, toolName)
	if err != nil {
		return nil, fmt.Errorf("ListInvocationPolicies: %w", err)
	}
	defer rows.Close()

	var records []InvocationPolicyRecord
	for rows.Next() {
		r := InvocationPolicyRecord{AgentID: agentID, ToolName: toolName}
		if err := rows.Scan(&r.ID, &r.ArgumentPath, &r.Operator, &r.Value,
			&r.Action, &r.Reason, &r.Position, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListInvocationPolicies: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CreateInvocationPolicy appends a policy at the end of the assignment's
// evaluation order.
func (s *Store) CreateInvocationPolicy(ctx context.Context, agentID, toolName string, p policy.ToolInvocationPolicy) (*InvocationPolicyRecord, error) {
	r := InvocationPolicyRecord{
		ToolInvocationPolicy: p,
		AgentID:              agentID,
		ToolName:             toolName,
	}
	r.ID = uuid.New().String()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tool_invocation_policies
			(id, agent_id, tool_name, argument_path, operator, value, action, reason, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''),
			(SELECT COALESCE(MAX(position) + 1, 0)
			 FROM tool_invocation_policies
			 WHERE agent_id = $2 AND tool_name = $3),
			now())
		RETURNING position, created_at`,
		r.ID, agentID, toolName, p.ArgumentPath, string(p.Operator), p.Value,
		string(p.Action), p.Reason,
	).Scan(&r.Position, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateInvocationPolicy: %w", err)
	}
	s.cache.invalidate(agentID, toolName)
	return &r, nil
}

// DeleteInvocationPolicy removes a policy; it reports whether a row was
// deleted.
func (s *Store) DeleteInvocationPolicy(ctx context.Context, agentID, toolName, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tool_invocation_policies
		WHERE id = $1 AND agent_id = $2 AND tool_name = $3`,
		id, agentID, toolName)
	if err != nil {
		return false, fmt.Errorf("DeleteInvocationPolicy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("DeleteInvocationPolicy: %w", err)
	}
	s.cache.invalidate(agentID, toolName)
	return n > 0, nil
}

// ListTrustedDataPolicies returns the assignment's trusted data policies
// in evaluation order.
func (s *Store) ListTrustedDataPolicies(ctx context.Context, agentID, toolName string) ([]TrustedDataPolicyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attribute_path, operator, value, action, COALESCE(description, ''), position, created_at
		FROM trusted_data_policies
		WHERE agent_id = $1 AND tool_name = $2
		ORDER BY position`,
		agentID, toolName)
	if err != nil {
		return nil, fmt.Errorf("ListTrustedDataPolicies: %w", err)
	}
	defer rows.Close()

	var records []TrustedDataPolicyRecord
	for rows.Next() {
		r := TrustedDataPolicyRecord{AgentID: agentID, ToolName: toolName}
		if err := rows.Scan(&r.ID, &r.AttributePath, &r.Operator, &r.Value,
			&r.Action, &r.Description, &r.Position, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListTrustedDataPolicies: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CreateTrustedDataPolicy appends a policy at the end of the assignment's
// evaluation order.
func (s *Store) CreateTrustedDataPolicy(ctx context.Context, agentID, toolName string, p policy.TrustedDataPolicy) (*TrustedDataPolicyRecord, error) {
	r := TrustedDataPolicyRecord{
		TrustedDataPolicy: p,
		AgentID:           agentID,
		ToolName:          toolName,
	}
	r.ID = uuid.New().String()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO trusted_data_policies
			(id, agent_id, tool_name, attribute_path, operator, value, action, description, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''),
			(SELECT COALESCE(MAX(position) + 1, 0)
			 FROM trusted_data_policies
			 WHERE agent_id = $2 AND tool_name = $3),
			now())
		RETURNING position, created_at`,
		r.ID, agentID, toolName, p.AttributePath, string(p.Operator), p.Value,
		string(p.Action), p.Description,
	).Scan(&r.Position, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateTrustedDataPolicy: %w", err)
	}
	s.cache.invalidate(agentID, toolName)
	return &r, nil
}

// DeleteTrustedDataPolicy removes a policy; it reports whether a row was
// deleted.
func (s *Store) DeleteTrustedDataPolicy(ctx context.Context, agentID, toolName, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM trusted_data_policies
		WHERE id = $1 AND agent_id = $2 AND tool_name = $3`,
		id, agentID, toolName)
	if err != nil {
		return false, fmt.Errorf("DeleteTrustedDataPolicy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("DeleteTrustedDataPolicy: %w", err)
	}
	s.cache.invalidate(agentID, toolName)
	return n > 0, nil
}
