package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

type busWire struct {
	ID        string `json:"_id"`
	BusNumber string `json:"busNumber"`
	From      string `json:"from"`
	To        string `json:"to"`
	Depot     string `json:"depot"`
}

type busesResponse struct {
	envelope
	Buses []busWire `json:"buses"`
}

// ListDepotBuses returns the buses assigned to a depot.
func (c *Client) ListDepotBuses(ctx context.Context, depotID string) ([]model.Bus, error) {
	const op = "list depot buses"

	path := fmt.Sprintf("/api/conductor/depot/%s/buses", url.PathEscape(depotID))
	var out busesResponse
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if !out.ok() {
		return nil, &driven.RejectedError{Op: op, Message: out.message()}
	}

	buses := make([]model.Bus, 0, len(out.Buses))
	for _, b := range out.Buses {
		buses = append(buses, model.Bus{
			ID:     b.ID,
			Number: b.BusNumber,
			Route:  model.Route{From: b.From, To: b.To},
			Depot:  b.Depot,
		})
	}
	return buses, nil
}
