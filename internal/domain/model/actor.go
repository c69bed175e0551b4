package model

// ActorKind identifies which kind of principal a token or session belongs to.
type ActorKind string

const (
	ActorUser      ActorKind = "user"
	ActorConductor ActorKind = "conductor"
)

// ActorKinds lists every actor kind with its own token slot.
var ActorKinds = []ActorKind{ActorUser, ActorConductor}

// Valid reports whether k is a known actor kind.
func (k ActorKind) Valid() bool {
	return k == ActorUser || k == ActorConductor
}

// Conductor is the profile of an authenticated conductor as returned by the backend.
type Conductor struct {
	ID          string
	ConductorID string
	Name        string
	Depot       string
}

// ConductorLogin is the payload of a successful conductor login.
type ConductorLogin struct {
	Token     string
	Conductor Conductor
}

// UserLogin is the payload of a successful end-user login.
type UserLogin struct {
	Token    string
	UserID   string
	Name     string
	UserType string
}
