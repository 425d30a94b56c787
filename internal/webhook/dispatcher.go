package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/careinbox/careinbox/internal/agent"
	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/internal/conversation"
	"github.com/careinbox/careinbox/internal/emergency"
	"github.com/careinbox/careinbox/internal/observability/metrics"
	"github.com/careinbox/careinbox/internal/scheduling"
	"github.com/careinbox/careinbox/pkg/logging"
)

const flaggedTimeLayout = "2006-01-02T15:04:05-07:00"

// Delivery processing outcomes, used as metric labels.
const (
	statusProcessed = "processed"
	statusEmergency = "emergency"
	statusDeduped   = "deduped"
	statusSkipped   = "skipped"
	statusDropped   = "dropped"
	statusMalformed = "malformed"
	statusError     = "error"
	statusPanic     = "panic"
)

// InboxProvider is the slice of the mail API the dispatcher needs.
type InboxProvider interface {
	Reply(ctx context.Context, inboxID, messageID, text string) error
	UpdateLabels(ctx context.Context, inboxID, messageID string, add, remove []string) error
}

// Dispatcher accepts webhook deliveries, acknowledges them immediately,
// and processes each one asynchronously on its thread's queue.
type Dispatcher struct {
	inboxID   string
	dedup     *Guard
	threads   *conversation.ThreadStore
	runtime   agent.Runtime
	inbox     InboxProvider
	emergency *emergency.State
	clock     clock.Clock
	queues    *threadQueues
	metrics   *metrics.WebhookMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// DispatcherConfig wires the dispatcher's collaborators.
type DispatcherConfig struct {
	InboxID     string
	Dedup       *Guard
	Threads     *conversation.ThreadStore
	Runtime     agent.Runtime
	Inbox       InboxProvider
	Emergency   *emergency.State
	Clock       clock.Clock
	QueueBuffer int
	Metrics     *metrics.WebhookMetrics
	Logger      *logging.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	dedup := cfg.Dedup
	if dedup == nil {
		dedup = NewGuard(0)
	}
	threads := cfg.Threads
	if threads == nil {
		threads = conversation.NewThreadStore()
	}
	return &Dispatcher{
		inboxID:   cfg.InboxID,
		dedup:     dedup,
		threads:   threads,
		runtime:   cfg.Runtime,
		inbox:     cfg.Inbox,
		emergency: cfg.Emergency,
		clock:     clk,
		queues:    newThreadQueues(cfg.QueueBuffer, logger),
		metrics:   cfg.Metrics,
		logger:    logger,
		tracer:    otel.Tracer("careinbox.internal.webhook"),
	}
}

// HandleWebhook handles POST /webhooks requests. The delivery is
// acknowledged with 200 before any processing happens so the sender never
// retries on slow model calls.
func (d *Dispatcher) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var delivery Delivery
	if err := json.NewDecoder(r.Body).Decode(&delivery); err != nil {
		d.logger.Warn("failed to decode webhook delivery", "error", err)
		d.metrics.ObserveDelivery(statusMalformed)
		writeAccepted(w)
		return
	}

	msg := delivery.Message
	d.logger.Info("webhook delivery received",
		"event_id", delivery.EventID,
		"message_id", msg.MessageID,
		"thread_id", msg.ThreadID,
	)

	enqueued := d.queues.Enqueue(msg.ThreadKey(), func() {
		d.process(context.Background(), delivery)
	})
	if !enqueued {
		d.metrics.ObserveDelivery(statusDropped)
	}
	writeAccepted(w)
}

// process runs one delivery end to end. It never panics outward: a panic
// in the agent or a collaborator is logged and the thread queue keeps
// draining.
func (d *Dispatcher) process(ctx context.Context, delivery Delivery) {
	started := time.Now()
	status := statusError
	defer func() {
		if rec := recover(); rec != nil {
			status = statusPanic
			d.logger.Error("panic while processing delivery",
				"event_id", delivery.EventID,
				"panic", rec,
			)
		}
		d.metrics.ObserveDelivery(status)
		d.metrics.ObserveProcessing(status, time.Since(started).Seconds())
	}()

	ctx, span := d.tracer.Start(ctx, "webhook.process",
		trace.WithAttributes(
			attribute.String("event.id", delivery.EventID),
			attribute.String("thread.id", delivery.Message.ThreadID),
		))
	defer span.End()

	msg := delivery.Message
	if d.dedup.Seen(delivery.EventID, msg.MessageID) {
		d.logger.Info("duplicate delivery ignored", "event_id", delivery.EventID, "message_id", msg.MessageID)
		status = statusDeduped
		return
	}
	if !msg.ShouldReply() {
		d.logger.Info("delivery outside reply gate", "message_id", msg.MessageID, "labels", msg.Labels)
		status = statusSkipped
		return
	}

	threadKey := msg.ThreadKey()
	history := d.threads.History(threadKey)

	outcome, err := d.runtime.Run(ctx, history, msg.Prompt())
	if err != nil {
		span.RecordError(err)
		d.logger.Error("agent run failed", "error", err, "message_id", msg.MessageID)
		return
	}

	if outcome.Emergency != nil {
		d.flagEmergency(threadKey, delivery, outcome.Emergency)
		status = statusEmergency
		return
	}

	if err := d.inbox.Reply(ctx, d.inboxID, msg.MessageID, outcome.Reply); err != nil {
		span.RecordError(err)
		d.logger.Error("failed to send reply", "error", err, "message_id", msg.MessageID)
		return
	}
	// Thread memory mirrors the actual email exchange: a turn is persisted
	// only once its reply has gone out. Withheld or failed replies leave
	// the stored history untouched.
	d.threads.Replace(threadKey, outcome.History)
	// Label bookkeeping is advisory: a failure here must not fail the
	// delivery after the reply already went out.
	if err := d.inbox.UpdateLabels(ctx, d.inboxID, msg.MessageID, []string{"replied"}, []string{"unreplied"}); err != nil {
		d.logger.Warn("failed to update labels", "error", err, "message_id", msg.MessageID)
	}

	d.logger.Info("reply sent", "message_id", msg.MessageID, "thread_id", threadKey)
	status = statusProcessed
}

// flagEmergency raises the clinic flag and records the withheld response
// instead of replying to the patient.
func (d *Dispatcher) flagEmergency(threadKey string, delivery Delivery, signal *agent.EmergencySignal) {
	// Staff-facing timestamps always render in clinic time, whatever zone
	// the clock carries.
	now := d.clock.Now().In(scheduling.ClinicZone)
	d.emergency.Activate(threadKey, signal.Message, now)
	d.emergency.RecordFlagged(threadKey, emergency.FlaggedResponse{
		Timestamp: now.Format(flaggedTimeLayout),
		MessageID: delivery.Message.MessageID,
		EventID:   delivery.EventID,
		Message:   signal.Message,
	})
	d.logger.Warn("emergency flagged, reply withheld",
		"thread_id", threadKey,
		"message_id", delivery.Message.MessageID,
		"message", signal.Message,
	)
}

// Close drains the per-thread queues. Used during graceful shutdown.
func (d *Dispatcher) Close() {
	d.queues.Close()
}

func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
