package application

import (
	"strings"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// RouteMatches reports whether a pass route covers a bus route: all four
// endpoints are set and both pairs are equal ignoring case.
func RouteMatches(pass, bus model.Route) bool {
	if pass.From == "" || pass.To == "" || bus.From == "" || bus.To == "" {
		return false
	}
	return strings.EqualFold(pass.From, bus.From) && strings.EqualFold(pass.To, bus.To)
}
