package backend

import (
	"context"
	"net/http"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

const verifyPassPath = "/api/conductor/verify-pass"

type verifyPassRequest struct {
	UserID string `json:"userId"`
	BusID  string `json:"busId"`
}

type passUser struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Photo      string `json:"photo"`
	PassID     string `json:"passId"`
	PassType   string `json:"passType"`
	From       string `json:"From"`
	To         string `json:"To"`
	Validity   string `json:"validity"`
	RouteValid *bool  `json:"routeValid"`
}

type verifyPassResponse struct {
	envelope
	Valid      *bool     `json:"valid"`
	User       *passUser `json:"user"`
	RouteValid *bool     `json:"routeValid"`
}

// CheckPass asks the backend whether subjectID holds a pass valid for bus.
// A response is a success only when success is true and valid is true or
// absent.
func (c *Client) CheckPass(ctx context.Context, subjectID string, bus model.Bus) (model.Result[model.Pass], error) {
	var out verifyPassResponse
	req := verifyPassRequest{UserID: subjectID, BusID: bus.ID}
	if err := c.doJSON(ctx, "check pass", http.MethodPost, verifyPassPath, req, &out); err != nil {
		return model.Result[model.Pass]{}, err
	}

	pass := mapPass(subjectID, out)
	if !out.ok() || (out.Valid != nil && !*out.Valid) {
		return model.Result[model.Pass]{Payload: pass, Message: out.message()}, nil
	}
	return model.Ok(pass, out.message()), nil
}

func mapPass(subjectID string, out verifyPassResponse) model.Pass {
	pass := model.Pass{SubjectID: subjectID, RouteValid: out.RouteValid}
	if out.User == nil {
		return pass
	}

	u := out.User
	if u.ID != "" {
		pass.SubjectID = u.ID
	}
	pass.SubjectName = u.Name
	pass.PassID = u.PassID
	pass.PassType = u.PassType
	pass.Route = model.Route{From: u.From, To: u.To}
	pass.Validity = u.Validity
	pass.PhotoRef = u.Photo
	if pass.RouteValid == nil {
		pass.RouteValid = u.RouteValid
	}
	return pass
}
