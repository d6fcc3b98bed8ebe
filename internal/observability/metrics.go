// Package observability provides metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MessagesAppended counts messages appended per room kind.
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_messages_appended_total",
		Help: "Total number of messages appended to rooms",
	}, []string{"room_kind"})

	// RoomResolutions counts resolve-or-create operations by kind and outcome.
	RoomResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_room_resolutions_total",
		Help: "Total number of room resolve-or-create operations",
	}, []string{"kind", "outcome"})

	// GroupReconciliations counts membership reconciliation runs.
	GroupReconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtyard_group_reconciliations_total",
		Help: "Total number of group membership reconciliation runs",
	})

	// AttachmentUploads counts accepted uploads by category and serving backend.
	AttachmentUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_attachment_uploads_total",
		Help: "Total number of stored attachments",
	}, []string{"category", "backend"})

	// AttachmentRejections counts uploads rejected before any storage attempt.
	AttachmentRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_attachment_rejections_total",
		Help: "Total number of uploads rejected by validation",
	}, []string{"reason"})

	// StorageFailures counts blob store failures by backend.
	StorageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtyard_storage_failures_total",
		Help: "Total number of blob store write failures",
	}, []string{"backend"})
)
