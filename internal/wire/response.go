package wire

// ResponseStatus is the terminal or intermediate status of a Response.
// Processing responses may precede a terminal Ok or Failure for the same
// request id; a request id is considered complete once the first Ok or
// Failure status for it is observed.
type ResponseStatus string

const (
	ResponseOk         ResponseStatus = "OK"
	ResponseProcessing ResponseStatus = "PROCESSING"
	ResponseFailure    ResponseStatus = "FAILURE"
)

// Response is sent by the supervisor to a control-socket client. ID always
// echoes the Request.ID it answers; the original implementation's
// placeholder response id is never produced here.
type Response struct {
	ID      string          `json:"id"`
	Version uint8           `json:"version"`
	Status  ResponseStatus  `json:"status"`
	Message string          `json:"message"`
	Content *ResponseContent `json:"content,omitempty"`
}

func NewResponse(requestID string, status ResponseStatus, message string, content *ResponseContent) Response {
	return Response{
		ID:      requestID,
		Version: ProtocolVersion,
		Status:  status,
		Message: message,
		Content: content,
	}
}

func OkResponse(requestID, message string, content *ResponseContent) Response {
	return NewResponse(requestID, ResponseOk, message, content)
}

func ProcessingResponse(requestID, message string) Response {
	return NewResponse(requestID, ResponseProcessing, message, nil)
}

func FailureResponse(requestID, message string) Response {
	return NewResponse(requestID, ResponseFailure, message, nil)
}

// ResponseContentKind tags the ResponseContent variant.
type ResponseContentKind string

const (
	ContentWorkers       ResponseContentKind = "WORKERS"
	ContentMetrics       ResponseContentKind = "METRICS"
	ContentQuery         ResponseContentKind = "QUERY"
	ContentState         ResponseContentKind = "STATE"
	ContentEvent         ResponseContentKind = "EVENT"
	ContentFrontendList  ResponseContentKind = "FRONTEND_LIST"
	ContentStatus        ResponseContentKind = "STATUS"
	ContentListenersList ResponseContentKind = "LISTENERS_LIST"
)

// ResponseContent is the typed payload carried by a terminal Response. Only
// the field matching Kind is populated.
type ResponseContent struct {
	Kind ResponseContentKind `json:"kind"`

	Workers       []WorkerInfo               `json:"workers,omitempty"`
	Metrics       *AggregatedMetricsData     `json:"metrics,omitempty"`
	Query         map[string]QueryAnswer     `json:"query,omitempty"`
	State         []byte                     `json:"state,omitempty"`
	Event         *Event                     `json:"event,omitempty"`
	FrontendList  *ListedFrontends           `json:"frontend_list,omitempty"`
	Status        []WorkerInfo               `json:"status,omitempty"`
	ListenersList *ListenersList             `json:"listeners_list,omitempty"`
}

// QueryAnswerKind tags the QueryAnswer variant, one per worker answering a
// QueryClusters-family request.
type QueryAnswerKind string

const (
	QueryAnswerClusters       QueryAnswerKind = "CLUSTERS"
	QueryAnswerClustersHashes QueryAnswerKind = "CLUSTERS_HASHES"
	QueryAnswerCertificates   QueryAnswerKind = "CERTIFICATES"
	QueryAnswerMetricsKind    QueryAnswerKind = "METRICS"
)

// QueryAnswer is one answer to a query request. In the enclosing
// ResponseContent.Query map the command server stores a single answer, built
// from the supervisor's ConfigState, under the key "main".
type QueryAnswer struct {
	Kind           QueryAnswerKind         `json:"kind"`
	Clusters       []QueryAnswerCluster    `json:"clusters,omitempty"`
	ClustersHashes map[string]uint64       `json:"clusters_hashes,omitempty"`
	Certificates   map[string]Certificate  `json:"certificates,omitempty"`
	Metrics        *WorkerMetrics          `json:"metrics,omitempty"`
}

// ProxyResponseStatus is the status a worker attaches to its answer for a
// single dispatched request.
type ProxyResponseStatus string

const (
	ProxyResponseOk         ProxyResponseStatus = "OK"
	ProxyResponseProcessing ProxyResponseStatus = "PROCESSING"
	ProxyResponseError      ProxyResponseStatus = "ERROR"
)

// ProxyResponse is a worker's answer to a single dispatched Request, read
// off a WorkerSession's channel by WorkerPool.
type ProxyResponse struct {
	ID      string               `json:"id"`
	Status  ProxyResponseStatus  `json:"status"`
	Message string               `json:"message,omitempty"`
	Content *ProxyResponseContent `json:"content,omitempty"`
}

func OkProxyResponse(requestID string, content *ProxyResponseContent) ProxyResponse {
	return ProxyResponse{ID: requestID, Status: ProxyResponseOk, Content: content}
}

func ProcessingProxyResponse(requestID string) ProxyResponse {
	return ProxyResponse{ID: requestID, Status: ProxyResponseProcessing}
}

func ErrorProxyResponse(requestID, message string) ProxyResponse {
	return ProxyResponse{ID: requestID, Status: ProxyResponseError, Message: message}
}

// ProxyResponseContentKind tags the ProxyResponseContent variant.
type ProxyResponseContentKind string

const (
	ProxyContentQuery   ProxyResponseContentKind = "QUERY"
	ProxyContentEvent   ProxyResponseContentKind = "EVENT"
	ProxyContentMetrics ProxyResponseContentKind = "METRICS"
)

// ProxyResponseContent is the typed payload a worker attaches to a
// ProxyResponse.
type ProxyResponseContent struct {
	Kind    ProxyResponseContentKind `json:"kind"`
	Query   *QueryAnswer             `json:"query,omitempty"`
	Event   *Event                   `json:"event,omitempty"`
	Metrics *WorkerMetrics           `json:"metrics,omitempty"`
}

// WorkerResponse pairs a worker id with its ProxyResponse, the unit WorkerPool
// aggregates across a Broadcast.
type WorkerResponse struct {
	WorkerID uint32        `json:"worker_id"`
	Response ProxyResponse `json:"response"`
}

// ErrWorkerDisconnected is the synthetic message used when a worker's
// channel closes mid-request.
const ErrWorkerDisconnected = "worker disconnected"
