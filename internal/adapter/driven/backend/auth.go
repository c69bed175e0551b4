package backend

import (
	"context"
	"net/http"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

const (
	conductorLoginPath  = "/api/auth/conductor/login"
	conductorVerifyPath = "/api/auth/conductor/verify"
)

type conductorWire struct {
	ID          string `json:"_id"`
	ConductorID string `json:"conductorId"`
	Name        string `json:"name"`
	Depot       string `json:"depot"`
}

func (w conductorWire) toModel() model.Conductor {
	return model.Conductor{ID: w.ID, ConductorID: w.ConductorID, Name: w.Name, Depot: w.Depot}
}

type conductorLoginRequest struct {
	ConductorID string `json:"conductorId"`
	Password    string `json:"password"`
}

type conductorLoginResponse struct {
	envelope
	Token     string        `json:"token"`
	Conductor conductorWire `json:"conductor"`
}

type conductorProfileResponse struct {
	envelope
	Conductor *conductorWire `json:"conductor"`
}

// Login exchanges conductor credentials for a token. Rejected credentials are
// a failed Result, not an error.
func (c *Client) Login(ctx context.Context, conductorID, password string) (model.Result[model.ConductorLogin], error) {
	var out conductorLoginResponse
	req := conductorLoginRequest{ConductorID: conductorID, Password: password}
	err := c.doJSON(withoutSessionHook(ctx), "conductor login", http.MethodPost, conductorLoginPath, req, &out)
	if msg, rejected := credentialRejection(err); rejected {
		return model.Fail[model.ConductorLogin](msg), nil
	}
	if err != nil {
		return model.Result[model.ConductorLogin]{}, err
	}

	if !out.ok() || out.Token == "" {
		return model.Fail[model.ConductorLogin](out.message()), nil
	}
	return model.Ok(model.ConductorLogin{Token: out.Token, Conductor: out.Conductor.toModel()}, out.message()), nil
}

// Profile returns the conductor the current token belongs to.
func (c *Client) Profile(ctx context.Context) (model.Result[model.Conductor], error) {
	var out conductorProfileResponse
	if err := c.doJSON(ctx, "conductor profile", http.MethodGet, conductorVerifyPath, nil, &out); err != nil {
		return model.Result[model.Conductor]{}, err
	}
	if !out.ok() || out.Conductor == nil {
		return model.Fail[model.Conductor](out.message()), nil
	}
	return model.Ok(out.Conductor.toModel(), out.message()), nil
}
