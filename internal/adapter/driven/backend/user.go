package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

var _ driven.UserAccount = (*UserAccount)(nil)

const (
	userLoginPath    = "/auth/login"
	userPassInfoPath = "/api/user/pass-info"
)

type userLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userLoginResponse struct {
	envelope
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	UserType string `json:"user_type"`
}

type passInfoUser struct {
	From              string `json:"From"`
	To                string `json:"To"`
	PassType          string `json:"pass_type"`
	PassStatus        string `json:"Pass_Status"`
	PassExpiry        string `json:"pass_expiry"`
	ApplicationStatus string `json:"application_status"`
}

type passInfoResponse struct {
	envelope
	User *passInfoUser `json:"user"`
}

// UserAccount exposes the end-user endpoints over a user-scoped Client.
type UserAccount struct {
	client *Client
}

// NewUserAccount wraps a Client created with Kind model.ActorUser.
func NewUserAccount(client *Client) *UserAccount {
	return &UserAccount{client: client}
}

// Login exchanges user credentials for a token. Rejected credentials are a
// failed Result, not an error.
func (a *UserAccount) Login(ctx context.Context, email, password string) (model.Result[model.UserLogin], error) {
	var out userLoginResponse
	req := userLoginRequest{Email: email, Password: password}
	err := a.client.doJSON(withoutSessionHook(ctx), "user login", http.MethodPost, userLoginPath, req, &out)
	if msg, rejected := credentialRejection(err); rejected {
		return model.Fail[model.UserLogin](msg), nil
	}
	if err != nil {
		return model.Result[model.UserLogin]{}, err
	}

	if !out.ok() || out.Token == "" {
		return model.Fail[model.UserLogin](out.message()), nil
	}
	return model.Ok(model.UserLogin{
		Token:    out.Token,
		UserID:   out.UserID,
		Name:     out.Name,
		UserType: out.UserType,
	}, out.message()), nil
}

// PassInfo returns the signed-in user's pass summary.
func (a *UserAccount) PassInfo(ctx context.Context) (model.Result[model.UserPassInfo], error) {
	var out passInfoResponse
	if err := a.client.doJSON(ctx, "pass info", http.MethodGet, userPassInfoPath, nil, &out); err != nil {
		return model.Result[model.UserPassInfo]{}, err
	}
	if !out.ok() || out.User == nil {
		return model.Fail[model.UserPassInfo](out.message()), nil
	}

	u := out.User
	status := u.PassStatus
	if status == "" {
		status = u.ApplicationStatus
	}
	return model.Ok(model.UserPassInfo{
		HasPass:  strings.EqualFold(u.PassStatus, "active") || u.PassType != "",
		Status:   status,
		PassType: u.PassType,
		Route:    model.Route{From: u.From, To: u.To},
		Validity: u.PassExpiry,
	}, out.message()), nil
}
