package wire

// ProtocolVersion is the wire protocol version carried on every Response.
const ProtocolVersion uint8 = 1

// RequestKind tags the Request.Content variant. The dispatch table in
// internal/commandserver switches on this value.
type RequestKind string

const (
	// Pure-read requests, served from ConfigState or broadcast to workers.
	RequestQueryClusters      RequestKind = "QUERY_CLUSTERS"
	RequestQueryClustersHashes RequestKind = "QUERY_CLUSTERS_HASHES"
	RequestQueryCertificates  RequestKind = "QUERY_CERTIFICATES"
	RequestQueryMetrics       RequestKind = "QUERY_METRICS"
	RequestListFrontends      RequestKind = "LIST_FRONTENDS"
	RequestListListeners      RequestKind = "LIST_LISTENERS"
	RequestStatus             RequestKind = "STATUS"

	// Mutations, routed through WorkerPool.FanOutMutation.
	RequestAddListener        RequestKind = "ADD_LISTENER"
	RequestRemoveListener     RequestKind = "REMOVE_LISTENER"
	RequestActivateListener   RequestKind = "ACTIVATE_LISTENER"
	RequestDeactivateListener RequestKind = "DEACTIVATE_LISTENER"
	RequestAddCluster         RequestKind = "ADD_CLUSTER"
	RequestRemoveCluster      RequestKind = "REMOVE_CLUSTER"
	RequestAddHttpFrontend    RequestKind = "ADD_HTTP_FRONTEND"
	RequestRemoveHttpFrontend RequestKind = "REMOVE_HTTP_FRONTEND"
	RequestAddTcpFrontend     RequestKind = "ADD_TCP_FRONTEND"
	RequestRemoveTcpFrontend  RequestKind = "REMOVE_TCP_FRONTEND"
	RequestAddBackend         RequestKind = "ADD_BACKEND"
	RequestRemoveBackend      RequestKind = "REMOVE_BACKEND"
	RequestAddCertificate     RequestKind = "ADD_CERTIFICATE"
	RequestRemoveCertificate  RequestKind = "REMOVE_CERTIFICATE"

	// Lifecycle requests, routed to WorkerPool/Upgrader.
	RequestLaunchWorker    RequestKind = "LAUNCH_WORKER"
	RequestUpgradeMain     RequestKind = "UPGRADE_MAIN"
	RequestUpgradeWorkers  RequestKind = "UPGRADE_WORKERS"
	RequestShutdown        RequestKind = "SHUTDOWN"

	// Internal, sent by the supervisor to a worker, never by a client.
	RequestReconcileState RequestKind = "RECONCILE_STATE"

	// Long-lived subscription.
	RequestSubscribeEvents RequestKind = "SUBSCRIBE_EVENTS"
)

// Request is a single client request to the command socket.
type Request struct {
	ID      string      `json:"id" validate:"required"`
	Version uint8       `json:"version" validate:"required"`
	Kind    RequestKind `json:"kind" validate:"required"`
	Content RequestContent `json:"content,omitempty"`
}

// RequestContent holds the payload fields for whichever mutation or query
// Kind names. Exactly the fields relevant to Kind are expected to be set;
// validation of cross-field constraints happens in commandserver, not here.
type RequestContent struct {
	ClusterID string `json:"cluster_id,omitempty"`

	Listener     *ListenerSpec `json:"listener,omitempty"`
	Cluster      *Cluster      `json:"cluster,omitempty"`
	HttpFrontend *HttpFrontend `json:"http_frontend,omitempty"`
	TcpFrontend  *TcpFrontend  `json:"tcp_frontend,omitempty"`
	Backend      *Backend      `json:"backend,omitempty"`
	BackendID    string        `json:"backend_id,omitempty"`

	Address string `json:"address,omitempty"`

	Certificate *Certificate `json:"certificate,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`

	WorkerID uint32 `json:"worker_id,omitempty"`

	// Snapshot carries a full ConfigState.Snapshot() encoding, set only on
	// RequestReconcileState.
	Snapshot []byte `json:"snapshot,omitempty"`
}

// Certificate is a TLS certificate bound to one listener address and one or
// more SNI domain names.
type Certificate struct {
	Address     string   `json:"address"`
	Fingerprint string   `json:"fingerprint"`
	DomainNames []string `json:"domain_names"`
	PEMChain    string   `json:"pem_chain"`
}

// ListenerSpec identifies and configures a listener addition request; the
// Kind mirrors ListenerKind so a single request type covers all three
// listener variants.
type ListenerSpec struct {
	Kind  ListenerKind         `json:"kind" validate:"required,oneof=HTTP HTTPS TCP"`
	HTTP  *HttpListenerConfig  `json:"http,omitempty"`
	HTTPS *HttpsListenerConfig `json:"https,omitempty"`
	TCP   *TcpListenerConfig   `json:"tcp,omitempty"`
}
