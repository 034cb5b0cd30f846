package engine

import (
	"context"
	"slices"

	"github.com/ts-31/archestra-sub000/internal/policy"
)

// memRepo is an in-memory policy repository for tests. It records every
// bulk load so tests can assert the one-read-per-batch bound.
type memRepo struct {
	invocation map[string][]policy.ToolInvocationPolicy
	trusted    map[string][]policy.TrustedDataPolicy
	config     map[string]policy.SecurityConfig

	invocationLoads [][]string
	trustedLoads    [][]string

	err error
}

func newMemRepo() *memRepo {
	return &memRepo{
		invocation: make(map[string][]policy.ToolInvocationPolicy),
		trusted:    make(map[string][]policy.TrustedDataPolicy),
		config:     make(map[string]policy.SecurityConfig),
	}
}

func (r *memRepo) register(toolName string, cfg policy.SecurityConfig) *memRepo {
	r.config[toolName] = cfg
	return r
}

func (r *memRepo) addInvocationPolicy(toolName string, p policy.ToolInvocationPolicy) *memRepo {
	r.invocation[toolName] = append(r.invocation[toolName], p)
	return r
}

func (r *memRepo) addTrustedDataPolicy(toolName string, p policy.TrustedDataPolicy) *memRepo {
	r.trusted[toolName] = append(r.trusted[toolName], p)
	return r
}

func (r *memRepo) LoadInvocationPolicies(_ context.Context, _ string, toolNames []string) (*policy.InvocationPolicySet, error) {
	r.invocationLoads = append(r.invocationLoads, slices.Clone(toolNames))
	if r.err != nil {
		return nil, r.err
	}
	set := &policy.InvocationPolicySet{
		Policies: make(map[string][]policy.ToolInvocationPolicy),
		Config:   make(map[string]policy.SecurityConfig),
	}
	for _, name := range toolNames {
		if cfg, ok := r.config[name]; ok {
			set.Config[name] = cfg
			set.Policies[name] = r.invocation[name]
		}
	}
	return set, nil
}

func (r *memRepo) LoadTrustedDataPolicies(_ context.Context, _ string, toolNames []string) (*policy.TrustedDataPolicySet, error) {
	r.trustedLoads = append(r.trustedLoads, slices.Clone(toolNames))
	if r.err != nil {
		return nil, r.err
	}
	set := &policy.TrustedDataPolicySet{
		Policies: make(map[string][]policy.TrustedDataPolicy),
		Config:   make(map[string]policy.SecurityConfig),
	}
	for _, name := range toolNames {
		if cfg, ok := r.config[name]; ok {
			set.Config[name] = cfg
			set.Policies[name] = r.trusted[name]
		}
	}
	return set, nil
}
