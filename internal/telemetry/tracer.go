package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for supervisor spans, following OpenTelemetry semantic
// conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// ========================================================================
	// Control command attributes
	// ========================================================================
	AttrRequestID = "command.request_id"
	AttrCommand   = "command.kind"
	AttrStatus    = "command.status"
	AttrStatusMsg = "command.status_msg"

	// ========================================================================
	// Worker attributes
	// ========================================================================
	AttrWorkerID  = "worker.id"
	AttrWorkerPID = "worker.pid"

	// ========================================================================
	// Cluster / listener attributes
	// ========================================================================
	AttrClusterID  = "cluster.id"
	AttrFrontendID = "frontend.id"
	AttrBackendID  = "backend.id"
	AttrListener   = "listener.address"

	// ========================================================================
	// Snapshot attributes
	// ========================================================================
	AttrSnapshotPath = "snapshot.path"
	AttrBucket       = "snapshot.bucket"
	AttrStorageKey   = "snapshot.key"
)

// Span names for supervisor operations.
const (
	// Root span for a control command as it enters the command server.
	SpanCommandRequest = "command.request"

	// Fan-out of a mutation to every worker in the pool.
	SpanFanOutMutation = "supervisor.fan_out_mutation"

	// A single worker's turn in a fan-out.
	SpanWorkerApply = "worker.apply"

	// Non-mutating event delivered to every worker (e.g. logrotate).
	SpanBroadcast = "supervisor.broadcast"

	SpanSnapshotSave    = "snapshotstore.save"
	SpanSnapshotRestore = "snapshotstore.restore"
	SpanSnapshotMirror  = "snapshotstore.mirror"

	SpanUpgrade = "supervisor.upgrade"
)

// ClientIP returns an attribute for client IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// RequestID returns an attribute for the command request correlation id.
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Command returns an attribute for the request Kind.
func Command(kind string) attribute.KeyValue {
	return attribute.String(AttrCommand, kind)
}

// Status returns an attribute for a response status.
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// StatusMsg returns an attribute for a human-readable status message.
func StatusMsg(msg string) attribute.KeyValue {
	return attribute.String(AttrStatusMsg, msg)
}

// WorkerID returns an attribute for a worker id.
func WorkerID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrWorkerID, int64(id))
}

// WorkerPID returns an attribute for a worker's OS process id.
func WorkerPID(pid int) attribute.KeyValue {
	return attribute.Int(AttrWorkerPID, pid)
}

// ClusterID returns an attribute for a cluster id.
func ClusterID(id string) attribute.KeyValue {
	return attribute.String(AttrClusterID, id)
}

// FrontendID returns an attribute for a frontend id.
func FrontendID(id string) attribute.KeyValue {
	return attribute.String(AttrFrontendID, id)
}

// BackendID returns an attribute for a backend id.
func BackendID(id string) attribute.KeyValue {
	return attribute.String(AttrBackendID, id)
}

// Listener returns an attribute for a listener address.
func Listener(address string) attribute.KeyValue {
	return attribute.String(AttrListener, address)
}

// SnapshotPath returns an attribute for the local snapshot file path.
func SnapshotPath(path string) attribute.KeyValue {
	return attribute.String(AttrSnapshotPath, path)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrStorageKey, key)
}

// StartCommandSpan starts a span for a control command as it enters the
// command server, tagging it with its request id and Kind.
func StartCommandSpan(ctx context.Context, requestID, command string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RequestID(requestID),
		Command(command),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanCommandRequest, trace.WithAttributes(allAttrs...))
}

// StartFanOutSpan starts a span covering a mutation's delivery to every
// worker in the pool.
func StartFanOutSpan(ctx context.Context, command string, workerCount int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Command(command),
		attribute.Int("worker.count", workerCount),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanFanOutMutation, trace.WithAttributes(allAttrs...))
}

// StartWorkerApplySpan starts a span for a single worker's turn within a
// fan-out.
func StartWorkerApplySpan(ctx context.Context, workerID uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		WorkerID(workerID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanWorkerApply, trace.WithAttributes(allAttrs...))
}

// StartSnapshotSpan starts a span for a snapshot store operation.
func StartSnapshotSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "snapshotstore."+operation, trace.WithAttributes(attrs...))
}
