// Package registry maps observed addresses to logical endpoint groups.
package registry

import (
	"fmt"
	"net/netip"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/core/model"
)

// Group is a named logical endpoint bound to one or more addresses.
type Group struct {
	Name      string
	Addresses []string
	// Index is the position of the group in the configuration.
	Index int
}

// Registry is the immutable address-to-group mapping of one run.
// It is safe for concurrent use.
type Registry struct {
	groups      []Group
	byAddr      map[string]int
	servicePort int
}

// New builds a registry from the engine configuration. An address bound to
// two groups is rejected here rather than resolved by first match.
func New(cfg config.EngineConfig) (*Registry, error) {
	if cfg.ServicePort <= 0 || cfg.ServicePort > 65535 {
		return nil, fmt.Errorf("%w: service_port must be in 1..65535, got %d", model.ErrConfig, cfg.ServicePort)
	}
	if len(cfg.EndpointGroups) == 0 {
		return nil, fmt.Errorf("%w: endpoint_groups must not be empty", model.ErrConfig)
	}

	r := &Registry{
		groups:      make([]Group, 0, len(cfg.EndpointGroups)),
		byAddr:      make(map[string]int),
		servicePort: cfg.ServicePort,
	}
	names := make(map[string]bool, len(cfg.EndpointGroups))

	for i, def := range cfg.EndpointGroups {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: endpoint group #%d has no name", model.ErrConfig, i)
		}
		if names[def.Name] {
			return nil, fmt.Errorf("%w: duplicate endpoint group '%s'", model.ErrConfig, def.Name)
		}
		names[def.Name] = true
		if len(def.Addresses) == 0 {
			return nil, fmt.Errorf("%w: endpoint group '%s' has no addresses", model.ErrConfig, def.Name)
		}

		group := Group{Name: def.Name, Index: i}
		for _, raw := range def.Addresses {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: endpoint group '%s': invalid address '%s'", model.ErrConfig, def.Name, raw)
			}
			key := addr.String()
			if owner, ok := r.byAddr[key]; ok {
				if owner == i {
					continue
				}
				return nil, fmt.Errorf("%w: address %s is bound to both '%s' and '%s'",
					model.ErrConfig, key, r.groups[owner].Name, def.Name)
			}
			r.byAddr[key] = i
			group.Addresses = append(group.Addresses, key)
		}
		r.groups = append(r.groups, group)
	}
	return r, nil
}

// ServicePort returns the well-known port shared by all groups.
func (r *Registry) ServicePort() int {
	return r.servicePort
}

// Groups returns the groups in configuration order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	copy(out, r.groups)
	return out
}

// Len returns the number of registered groups.
func (r *Registry) Len() int {
	return len(r.groups)
}

// Lookup returns the group an address is registered under.
func (r *Registry) Lookup(host string) (Group, bool) {
	i, ok := r.byAddr[host]
	if !ok {
		return Group{}, false
	}
	return r.groups[i], true
}

// LookupEndpoint is Lookup restricted to the service port.
func (r *Registry) LookupEndpoint(ep model.Endpoint) (Group, bool) {
	if ep.Port != r.servicePort {
		return Group{}, false
	}
	return r.Lookup(ep.Host)
}

// Qualifies reports whether either side of the record uses the service port.
func (r *Registry) Qualifies(rec *model.PacketRecord) bool {
	return rec.Source.Port == r.servicePort || rec.Destination.Port == r.servicePort
}

// Attribute resolves the group and direction of a qualifying record.
// The destination is consulted first; the source only when the destination
// is not a registered address, so a record is never attributed twice.
func (r *Registry) Attribute(rec *model.PacketRecord) (Group, model.Direction, bool) {
	if !r.Qualifies(rec) {
		return Group{}, "", false
	}
	if g, ok := r.Lookup(rec.Destination.Host); ok {
		return g, model.ClientToGroup, true
	}
	if g, ok := r.Lookup(rec.Source.Host); ok {
		return g, model.GroupToClient, true
	}
	return Group{}, "", false
}
