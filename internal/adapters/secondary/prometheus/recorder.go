package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"asset-lifecycle-service/internal/core/domain"
	"asset-lifecycle-service/internal/core/ports/output"
)

const namespace = "asset_lifecycle"

type recorder struct {
	uploads       *prometheus.CounterVec
	backups       *prometheus.CounterVec
	verifications *prometheus.CounterVec
	attempts      *prometheus.HistogramVec
	rejections    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	autoTriggers  prometheus.Counter
}

// NewRecorder registers the lifecycle metrics on reg.
func NewRecorder(reg prometheus.Registerer) ports.Recorder {
	r := &recorder{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Artifact uploads by file kind and outcome.",
		}, []string{"file_kind", "success"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Artifact backups by file kind and status.",
		}, []string{"file_kind", "status"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Pointer write verifications by field and outcome.",
		}, []string{"field", "confirmed"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_attempts",
			Help:      "Reads needed before a pointer write became visible.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}, []string{"field"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "Status transitions refused by the QA gate, by code.",
		}, []string{"code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Asset status transitions.",
		}, []string{"from", "to"}),
		autoTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_trigger_fired_total",
			Help:      "QA reviews started automatically after an upload.",
		}),
	}
	reg.MustRegister(r.uploads, r.backups, r.verifications, r.attempts, r.rejections, r.transitions, r.autoTriggers)
	return r
}

func (r *recorder) UploadFinished(kind domain.FileKind, ok bool) {
	r.uploads.WithLabelValues(string(kind), strconv.FormatBool(ok)).Inc()
}

func (r *recorder) BackupFinished(kind domain.FileKind, status string) {
	r.backups.WithLabelValues(string(kind), status).Inc()
}

func (r *recorder) VerificationFinished(field domain.AssetField, attempts int, ok bool) {
	r.verifications.WithLabelValues(string(field), strconv.FormatBool(ok)).Inc()
	r.attempts.WithLabelValues(string(field)).Observe(float64(attempts))
}

func (r *recorder) GateRejected(code string) {
	r.rejections.WithLabelValues(code).Inc()
}

func (r *recorder) StatusChanged(from, to domain.AssetStatus) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *recorder) AutoTriggerFired() {
	r.autoTriggers.Inc()
}
