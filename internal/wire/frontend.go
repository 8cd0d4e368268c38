package wire

// HttpFrontend maps inbound HTTP/HTTPS traffic on a listener to a Route. The
// composite key (Address, Hostname, Path, Method, Position) is unique within
// ConfigState; inserting a duplicate key replaces the existing frontend.
type HttpFrontend struct {
	Route    Route             `json:"route"`
	Address  string            `json:"address"`
	Hostname string            `json:"hostname"`
	Path     PathRule          `json:"path"`
	Method   *string           `json:"method,omitempty"`
	Position RulePosition      `json:"position"`
	Tags     map[string]string `json:"tags"`
}

// IsClusterID reports whether this frontend routes to the given cluster.
func (f HttpFrontend) IsClusterID(clusterID string) bool {
	return !f.Route.Deny && f.Route.ClusterID == clusterID
}

// RouteKey uniquely identifies an HttpFrontend within ConfigState.
type RouteKey struct {
	Address  string
	Hostname string
	Path     PathRule
	Method   string
	Position RulePosition
}

func (f HttpFrontend) RouteKey() RouteKey {
	method := ""
	if f.Method != nil {
		method = *f.Method
	}
	return RouteKey{
		Address:  f.Address,
		Hostname: f.Hostname,
		Path:     f.Path,
		Method:   method,
		Position: f.Position,
	}
}

// TcpFrontend maps a TCP listener address to a single cluster. A TCP
// listener has at most one frontend.
type TcpFrontend struct {
	ClusterID string            `json:"cluster_id"`
	Address   string            `json:"address"`
	Tags      map[string]string `json:"tags"`
}

// ListedFrontends is the response payload for a frontend-listing request.
type ListedFrontends struct {
	HttpFrontends  []HttpFrontend `json:"http_frontends"`
	HttpsFrontends []HttpFrontend `json:"https_frontends"`
	TcpFrontends   []TcpFrontend  `json:"tcp_frontends"`
}
