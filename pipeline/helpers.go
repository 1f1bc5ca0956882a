package pipeline

import (
	"github.com/goa-design/agentswarm/agentprovider"
	"github.com/goa-design/agentswarm/domain"
	"github.com/goa-design/agentswarm/internal/agenterr"
	"github.com/goa-design/agentswarm/router"
)

// selectProvider resolves role to a provider through pc.Router, surfacing
// *router.NoSuitableProvider as a Configuration-category error (spec.md
// §7: "A NoSuitableProvider error is surfaced as Configuration").
func selectProvider(pc *Context, role domain.Role) (agentprovider.Provider, error) {
	p, err := pc.Router.Select(role)
	if err != nil {
		var nsp *router.NoSuitableProvider
		if e, ok := err.(*router.NoSuitableProvider); ok {
			nsp = e
		}
		if nsp != nil {
			return nil, agenterr.New(nsp.Error(), agenterr.CategoryConfiguration, agenterr.SeverityCritical, false)
		}
		return nil, err
	}
	return p, nil
}
