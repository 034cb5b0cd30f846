package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ts-31/archestra-sub000/internal/policy"
)

// LoadInvocationPolicies implements policy.Repository. Cache misses are
// fetched with one LEFT JOIN query over the whole miss set; tools without
// an agent_tools row are negative-cached and left out of the set.
func (s *Store) LoadInvocationPolicies(ctx context.Context, agentID string, toolNames []string) (*policy.InvocationPolicySet, error) {
	set := &policy.InvocationPolicySet{
		Policies: make(map[string][]policy.ToolInvocationPolicy),
		Config:   make(map[string]policy.SecurityConfig),
	}

	var misses []string
	for _, name := range toolNames {
		snap, hit := s.cache.getInvocation(agentID, name)
		if !hit {
			misses = append(misses, name)
			continue
		}
		if snap == nil {
			continue // negative entry: no assignment
		}
		set.Config[name] = snap.config
		set.Policies[name] = snap.policies
	}

	if len(misses) == 0 {
		return set, nil
	}

	loaded, err := s.queryInvocationSnapshots(ctx, agentID, misses)
	if err != nil {
		return nil, fmt.Errorf("LoadInvocationPolicies: %w", err)
	}

	for _, name := range misses {
		snap := loaded[name]
		s.cache.setInvocation(agentID, name, snap)
		if snap == nil {
			continue
		}
		set.Config[name] = snap.config
		set.Policies[name] = snap.policies
	}
	return set, nil
}

func (s *Store) queryInvocationSnapshots(ctx context.Context, agentID string, toolNames []string) (map[string]*invocationSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tool_name, t.allow_when_untrusted, t.result_treatment,
		       p.id, p.argument_path, p.operator, p.value, p.action, p.reason
		FROM agent_tools t
		LEFT JOIN tool_invocation_policies p
		  ON p.agent_id = t.agent_id AND p.tool_name = t.tool_name
		WHERE t.agent_id = $1 AND t.tool_name = ANY($2)
		ORDER BY t.tool_name, p.position
	`, agentID, toolNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := make(map[string]*invocationSnapshot)
	for rows.Next() {
		var (
			toolName       string
			allowUntrusted bool
			treatment      string
			id, argPath    sql.NullString
			op, value      sql.NullString
			action, reason sql.NullString
		)
		if err := rows.Scan(&toolName, &allowUntrusted, &treatment,
			&id, &argPath, &op, &value, &action, &reason); err != nil {
			return nil, err
		}

		snap, ok := snaps[toolName]
		if !ok {
			snap = &invocationSnapshot{config: policy.SecurityConfig{
				AllowWhenUntrusted: allowUntrusted,
				ResultTreatment:    policy.ResultTreatment(treatment),
			}}
			snaps[toolName] = snap
		}

		if !id.Valid {
			continue // assignment exists but has no policies
		}
		snap.policies = append(snap.policies, policy.ToolInvocationPolicy{
			ID:           id.String,
			ArgumentPath: argPath.String,
			Operator:     policy.Operator(op.String),
			Value:        value.String,
			Action:       policy.InvocationAction(action.String),
			Reason:       reason.String,
		})
	}
	return snaps, rows.Err()
}

// LoadTrustedDataPolicies implements policy.Repository.
func (s *Store) LoadTrustedDataPolicies(ctx context.Context, agentID string, toolNames []string) (*policy.TrustedDataPolicySet, error) {
	set := &policy.TrustedDataPolicySet{
		Policies: make(map[string][]policy.TrustedDataPolicy),
		Config:   make(map[string]policy.SecurityConfig),
	}

	var misses []string
	for _, name := range toolNames {
		snap, hit := s.cache.getTrustedData(agentID, name)
		if !hit {
			misses = append(misses, name)
			continue
		}
		if snap == nil {
			continue
		}
		set.Config[name] = snap.config
		set.Policies[name] = snap.policies
	}

	if len(misses) == 0 {
		return set, nil
	}

	loaded, err := s.queryTrustedDataSnapshots(ctx, agentID, misses)
	if err != nil {
		return nil, fmt.Errorf("LoadTrustedDataPolicies: %w", err)
	}

	for _, name := range misses {
		snap := loaded[name]
		s.cache.setTrustedData(agentID, name, snap)
		if snap == nil {
			continue
		}
		set.Config[name] = snap.config
		set.Policies[name] = snap.policies
	}
	return set, nil
}

func (s *Store) queryTrustedDataSnapshots(ctx context.Context, agentID string, toolNames []string) (map[string]*trustedDataSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.tool_name, t.allow_when_untrusted, t.result_treatment,
		       p.id, p.attribute_path, p.operator, p.value, p.action, p.description
		FROM agent_tools t
		LEFT JOIN trusted_data_policies p
		  ON p.agent_id = t.agent_id AND p.tool_name = t.tool_name
		WHERE t.agent_id = $1 AND t.tool_name = ANY($2)
		ORDER BY t.tool_name, p.position
	`, agentID, toolNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := make(map[string]*trustedDataSnapshot)
	for rows.Next() {
		var (
			toolName            string
			allowUntrusted      bool
			treatment           string
			id, attrPath        sql.NullString
			op, value           sql.NullString
			action, description sql.NullString
		)
		if err := rows.Scan(&toolName, &allowUntrusted, &treatment,
			&id, &attrPath, &op, &value, &action, &description); err != nil {
			return nil, err
		}

		snap, ok := snaps[toolName]
		if !ok {
			snap = &trustedDataSnapshot{config: policy.SecurityConfig{
				AllowWhenUntrusted: allowUntrusted,
				ResultTreatment:    policy.ResultTreatment(treatment),
			}}
			snaps[toolName] = snap
		}

		if !id.Valid {
			continue
		}
		snap.policies = append(snap.policies, policy.TrustedDataPolicy{
			ID:            id.String,
			AttributePath: attrPath.String,
			Operator:      policy.Operator(op.String),
			Value:         value.String,
			Action:        policy.DataAction(action.String),
			Description:   description.String,
		})
	}
	return snaps, rows.Err()
}
