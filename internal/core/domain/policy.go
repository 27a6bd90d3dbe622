package domain

// RoutePolicy is the security configuration of a single route. A public
// route skips both guards; otherwise the access token is required and, when
// Roles is non-empty, the principal must satisfy at least one of them.
type RoutePolicy struct {
	Public bool   `yaml:"public" json:"public"`
	Roles  []Role `yaml:"roles,omitempty" json:"roles,omitempty"`
}
