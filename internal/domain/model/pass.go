package model

// Route is a pair of journey endpoints. Either side may be empty when unknown.
type Route struct {
	From string
	To   string
}

// Pass is the backend-owned travel authorization record. It is read-only on
// the client.
type Pass struct {
	SubjectID   string
	SubjectName string
	PassID      string
	PassType    string
	Route       Route
	Validity    string
	PhotoRef    string
	// RouteValid is the backend's own route verdict, when it sent one.
	RouteValid *bool
}

// Bus is the vehicle a verification session runs on.
type Bus struct {
	ID     string
	Number string
	Route  Route
	Depot  string
}

// UserPassInfo is the pass summary an end user sees for their own account.
type UserPassInfo struct {
	HasPass  bool
	Status   string
	PassType string
	Route    Route
	Validity string
}
