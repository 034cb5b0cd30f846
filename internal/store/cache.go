package store

import (
	"sync"
	"time"

	"github.com/ts-31/archestra-sub000/internal/policy"
)

// invocationSnapshot is the cached per-(agent, tool) invocation state.
// A nil snapshot is a negative entry: the tool has no assignment.
type invocationSnapshot struct {
	config   policy.SecurityConfig
	policies []policy.ToolInvocationPolicy
}

// trustedDataSnapshot is the cached per-(agent, tool) trusted-data state.
type trustedDataSnapshot struct {
	config   policy.SecurityConfig
	policies []policy.TrustedDataPolicy
}

type invocationEntry struct {
	snap      *invocationSnapshot
	expiresAt time.Time
}

type trustedEntry struct {
	snap      *trustedDataSnapshot
	expiresAt time.Time
}

// snapshotCache is a TTL cache of per-(agent, tool) policy snapshots with
// negative caching for unregistered tools. sync.Map keeps reads lock-free
// on the hot path.
type snapshotCache struct {
	invocation sync.Map // map[string]*invocationEntry
	trusted    sync.Map // map[string]*trustedEntry
	ttl        time.Duration
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	return &snapshotCache{ttl: ttl}
}

func cacheKey(agentID, toolName string) string {
	return agentID + ":" + toolName
}

func (c *snapshotCache) getInvocation(agentID, toolName string) (*invocationSnapshot, bool) {
	v, ok := c.invocation.Load(cacheKey(agentID, toolName))
	if !ok {
		return nil, false
	}
	entry := v.(*invocationEntry)
	if time.Now().After(entry.expiresAt) {
		c.invocation.Delete(cacheKey(agentID, toolName))
		return nil, false
	}
	return entry.snap, true
}

func (c *snapshotCache) setInvocation(agentID, toolName string, snap *invocationSnapshot) {
	c.invocation.Store(cacheKey(agentID, toolName), &invocationEntry{
		snap:      snap,
		expiresAt: time.Now().Add(c.ttl),
	})
}

func (c *snapshotCache) getTrustedData(agentID, toolName string) (*trustedDataSnapshot, bool) {
	v, ok := c.trusted.Load(cacheKey(agentID, toolName))
	if !ok {
		return nil, false
	}
	entry := v.(*trustedEntry)
	if time.Now().After(entry.expiresAt) {
		c.trusted.Delete(cacheKey(agentID, toolName))
		return nil, false
	}
	return entry.snap, true
}

func (c *snapshotCache) setTrustedData(agentID, toolName string, snap *trustedDataSnapshot) {
	c.trusted.Store(cacheKey(agentID, toolName), &trustedEntry{
		snap:      snap,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// invalidate drops both snapshots for an assignment. Called after every
// policy or config write so evaluations never see revoked rules for longer
// than an in-flight request.
func (c *snapshotCache) invalidate(agentID, toolName string) {
	key := cacheKey(agentID, toolName)
	c.invocation.Delete(key)
	c.trusted.Delete(key)
}
