package wire

// LoadBalancingPolicy selects how a worker distributes requests across a
// cluster's backends.
type LoadBalancingPolicy string

const (
	LoadBalancingRoundRobin    LoadBalancingPolicy = "ROUND_ROBIN"
	LoadBalancingRandom        LoadBalancingPolicy = "RANDOM"
	LoadBalancingLeastLoaded   LoadBalancingPolicy = "LEAST_LOADED"
	LoadBalancingPowerOfTwo    LoadBalancingPolicy = "POWER_OF_TWO"
)

// HealthCheckPolicy configures how a worker probes a cluster's backends for
// liveness independent of the supervisor's own worker-liveness probing.
type HealthCheckPolicy struct {
	Enabled  bool   `json:"enabled"`
	Path     string `json:"path,omitempty"`
	Interval int    `json:"interval_seconds,omitempty"`
}

// Cluster is a named group of backends serving one logical service.
type Cluster struct {
	ClusterID           string              `json:"cluster_id"`
	StickySessions      bool                `json:"sticky_sessions"`
	LoadBalancingPolicy  LoadBalancingPolicy `json:"load_balancing_policy"`
	ProtocolVersion      string              `json:"protocol_version"`
	HealthCheck          HealthCheckPolicy   `json:"health_check"`
}

// QueryAnswerCluster bundles a cluster's full configuration for a single
// worker's answer to a QueryClusters request.
type QueryAnswerCluster struct {
	Configuration  *Cluster       `json:"configuration,omitempty"`
	HttpFrontends  []HttpFrontend `json:"http_frontends"`
	HttpsFrontends []HttpFrontend `json:"https_frontends"`
	TcpFrontends   []TcpFrontend  `json:"tcp_frontends"`
	Backends       []Backend      `json:"backends"`
}
