package canopy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FrameMetrics exports UpdateManager counters to Prometheus.
type FrameMetrics struct {
	UpdatedFrames   prometheus.Counter
	SkippedFrames   prometheus.Counter
	Messages        prometheus.Counter
	AnimationsDone  prometheus.Counter
	RenderTasksDone prometheus.Counter
	Nodes           prometheus.Gauge
	DiscardDepth    prometheus.Gauge
	KeepUpdating    prometheus.Gauge
	UpdateDuration  prometheus.Histogram

	// totals already reported, so counters only ever receive deltas
	lastMessages    uint64
	lastAnimations  uint64
	lastRenderTasks uint64

	nodes   func() int
	discard func() int
}

// NewFrameMetrics registers the frame metrics with reg. A nil reg uses the
// default registerer.
func NewFrameMetrics(reg prometheus.Registerer) *FrameMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &FrameMetrics{
		UpdatedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "updated_frames_total",
			Help:      "Frames that ran the scene passes.",
		}),
		SkippedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "skipped_frames_total",
			Help:      "Frames that skipped the scene passes because nothing changed.",
		}),
		Messages: f.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "messages_processed_total",
			Help:      "Event-side messages applied by the update goroutine.",
		}),
		AnimationsDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "animations_finished_total",
			Help:      "Animations that reached the end of their play range.",
		}),
		RenderTasksDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: "canopy",
			Name:      "render_once_completed_total",
			Help:      "Render-once tasks that completed.",
		}),
		Nodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "canopy",
			Name:      "nodes",
			Help:      "Nodes owned by the update manager.",
		}),
		DiscardDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "canopy",
			Name:      "discard_queue_depth",
			Help:      "Objects waiting for release.",
		}),
		KeepUpdating: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "canopy",
			Name:      "keep_updating",
			Help:      "Keep-updating bitmask returned by the last update.",
		}),
		UpdateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "canopy",
			Name:      "update_duration_seconds",
			Help:      "Wall time of one Update call.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .002, .004, .008, .016, .033},
		}),
	}
}

// bind attaches the gauges to um's containers.
func (m *FrameMetrics) bind(um *UpdateManager) {
	m.nodes = func() int { return len(um.nodes) }
	m.discard = um.discard.Len
}

func (m *FrameMetrics) observe(st *Stats, updated bool, keep KeepUpdating) {
	if updated {
		m.UpdatedFrames.Inc()
	} else {
		m.SkippedFrames.Inc()
	}
	m.Messages.Add(float64(st.Messages - m.lastMessages))
	m.lastMessages = st.Messages
	m.AnimationsDone.Add(float64(st.AnimationsDone - m.lastAnimations))
	m.lastAnimations = st.AnimationsDone
	m.RenderTasksDone.Add(float64(st.RenderTasksDone - m.lastRenderTasks))
	m.lastRenderTasks = st.RenderTasksDone

	if m.nodes != nil {
		m.Nodes.Set(float64(m.nodes()))
	}
	if m.discard != nil {
		m.DiscardDepth.Set(float64(m.discard()))
	}
	m.KeepUpdating.Set(float64(keep))
	m.UpdateDuration.Observe(st.LastDuration.Seconds())
}
