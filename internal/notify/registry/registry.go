package registry

import (
	"fmt"
	"sync"
)

const GroupAdmin = "admin"

func GroupCustomer(customerID string) string { return fmt.Sprintf("customer:%s", customerID) }
func GroupOrder(orderNumber string) string   { return fmt.Sprintf("order:%s", orderNumber) }

// Registry tracks which live connections belong to which interest group.
// State is process-local and rebuilt by clients rejoining after reconnect;
// nothing here survives a restart on purpose.
type Registry struct {
	mu      sync.RWMutex
	byGroup map[string]map[string]struct{}
	byConn  map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		byGroup: map[string]map[string]struct{}{},
		byConn:  map[string]map[string]struct{}{},
	}
}

func (r *Registry) Join(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byGroup[group] == nil {
		r.byGroup[group] = map[string]struct{}{}
	}
	r.byGroup[group][connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = map[string]struct{}{}
	}
	r.byConn[connID][group] = struct{}{}
}

func (r *Registry) Leave(connID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(connID, group)
}

// Drop removes the connection from every group it belonged to. Called on
// disconnect so no group retains a stale member.
func (r *Registry) Drop(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for group := range r.byConn[connID] {
		r.remove(connID, group)
	}
}

func (r *Registry) remove(connID, group string) {
	if members := r.byGroup[group]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.byGroup, group)
		}
	}
	if groups := r.byConn[connID]; groups != nil {
		delete(groups, group)
		if len(groups) == 0 {
			delete(r.byConn, connID)
		}
	}
}

func (r *Registry) GroupsFor(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups := make([]string, 0, len(r.byConn[connID]))
	for group := range r.byConn[connID] {
		groups = append(groups, group)
	}
	return groups
}

func (r *Registry) MembersOf(group string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.byGroup[group]))
	for connID := range r.byGroup[group] {
		members = append(members, connID)
	}
	return members
}
