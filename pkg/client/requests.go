package client

import "github.com/sozu-io/sozu/internal/wire"

// The functions below build a wire.Request for every kind a client may
// send. Do assigns ID and Version, so callers only set the Content that
// matters for the chosen Kind.

func AddListener(spec wire.ListenerSpec) wire.Request {
	return wire.Request{Kind: wire.RequestAddListener, Content: wire.RequestContent{Listener: &spec}}
}

func RemoveListener(address string) wire.Request {
	return wire.Request{Kind: wire.RequestRemoveListener, Content: wire.RequestContent{Address: address}}
}

func ActivateListener(address string) wire.Request {
	return wire.Request{Kind: wire.RequestActivateListener, Content: wire.RequestContent{Address: address}}
}

func DeactivateListener(address string) wire.Request {
	return wire.Request{Kind: wire.RequestDeactivateListener, Content: wire.RequestContent{Address: address}}
}

func AddCluster(cluster wire.Cluster) wire.Request {
	return wire.Request{Kind: wire.RequestAddCluster, Content: wire.RequestContent{ClusterID: cluster.ClusterID, Cluster: &cluster}}
}

func RemoveCluster(clusterID string) wire.Request {
	return wire.Request{Kind: wire.RequestRemoveCluster, Content: wire.RequestContent{ClusterID: clusterID}}
}

func AddHttpFrontend(frontend wire.HttpFrontend) wire.Request {
	return wire.Request{Kind: wire.RequestAddHttpFrontend, Content: wire.RequestContent{HttpFrontend: &frontend}}
}

func RemoveHttpFrontend(frontend wire.HttpFrontend) wire.Request {
	return wire.Request{Kind: wire.RequestRemoveHttpFrontend, Content: wire.RequestContent{HttpFrontend: &frontend}}
}

func AddTcpFrontend(frontend wire.TcpFrontend) wire.Request {
	return wire.Request{Kind: wire.RequestAddTcpFrontend, Content: wire.RequestContent{TcpFrontend: &frontend}}
}

func RemoveTcpFrontend(frontend wire.TcpFrontend) wire.Request {
	return wire.Request{Kind: wire.RequestRemoveTcpFrontend, Content: wire.RequestContent{TcpFrontend: &frontend}}
}

func AddBackend(backend wire.Backend) wire.Request {
	return wire.Request{Kind: wire.RequestAddBackend, Content: wire.RequestContent{ClusterID: backend.ClusterID, Backend: &backend}}
}

func RemoveBackend(clusterID, backendID string) wire.Request {
	return wire.Request{Kind: wire.RequestRemoveBackend, Content: wire.RequestContent{ClusterID: clusterID, BackendID: backendID}}
}

func AddCertificate(cert wire.Certificate) wire.Request {
	return wire.Request{Kind: wire.RequestAddCertificate, Content: wire.RequestContent{Certificate: &cert}}
}

func RemoveCertificate(address, fingerprint string) wire.Request {
	return wire.Request{Kind: wire.RequestRemoveCertificate, Content: wire.RequestContent{Address: address, Fingerprint: fingerprint}}
}

func QueryClusters() wire.Request { return wire.Request{Kind: wire.RequestQueryClusters} }

func QueryClustersHashes() wire.Request { return wire.Request{Kind: wire.RequestQueryClustersHashes} }

func QueryCertificates() wire.Request { return wire.Request{Kind: wire.RequestQueryCertificates} }

func QueryMetrics() wire.Request { return wire.Request{Kind: wire.RequestQueryMetrics} }

func ListFrontends() wire.Request { return wire.Request{Kind: wire.RequestListFrontends} }

func ListListeners() wire.Request { return wire.Request{Kind: wire.RequestListListeners} }

func Status() wire.Request { return wire.Request{Kind: wire.RequestStatus} }

func LaunchWorker() wire.Request { return wire.Request{Kind: wire.RequestLaunchWorker} }

func UpgradeMain() wire.Request { return wire.Request{Kind: wire.RequestUpgradeMain} }

func UpgradeWorkers() wire.Request { return wire.Request{Kind: wire.RequestUpgradeWorkers} }

func Shutdown() wire.Request { return wire.Request{Kind: wire.RequestShutdown} }
