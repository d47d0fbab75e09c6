package stats

import "github.com/prometheus/client_golang/prometheus"

// metricSet is the Prometheus surface over a Batcher's counters, kept as
// a distinct type so Batcher itself stays independent of how (or
// whether) a caller wants metrics exported.
type metricSet struct {
	packetsTotal   *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	seqErrorsTotal *prometheus.CounterVec
	framesDropped  prometheus.Counter
	fps            prometheus.Gauge
	latencyMs      prometheus.Gauge
	bufferUtil     *prometheus.GaugeVec
}

func newMetricSet() metricSet {
	return metricSet{
		packetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "c64stream_packets_total",
			Help: "Packets received, by stream (video/audio).",
		}, []string{"stream"}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "c64stream_bytes_total",
			Help: "Bytes received, by stream.",
		}, []string{"stream"}),
		seqErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "c64stream_sequence_errors_total",
			Help: "Out-of-sequence/out-of-order packets observed, by stream.",
		}, []string{"stream"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "c64stream_video_frames_dropped_total",
			Help: "Video frame assemblies abandoned incomplete (timed out or superseded by a new frame index).",
		}),
		fps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "c64stream_video_fps",
			Help: "Most recently observed delivered video frames per second.",
		}),
		latencyMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "c64stream_video_pipeline_latency_ms",
			Help: "Average per-frame pipeline latency over the last interval.",
		}),
		bufferUtil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "c64stream_ring_buffer_utilisation_percent",
			Help: "Ring buffer occupancy as a percentage of capacity, by stream.",
		}, []string{"stream"}),
	}
}

func (m *metricSet) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.packetsTotal, m.bytesTotal, m.seqErrorsTotal, m.framesDropped, m.fps, m.latencyMs, m.bufferUtil)
}

func (m *metricSet) observe(video, audio *Counters, videoReport, audioReport *Report) {
	m.packetsTotal.WithLabelValues("video").Add(float64(video.PacketsReceived.Load()))
	m.packetsTotal.WithLabelValues("audio").Add(float64(audio.PacketsReceived.Load()))
	m.bytesTotal.WithLabelValues("video").Add(float64(video.BytesReceived.Load()))
	m.bytesTotal.WithLabelValues("audio").Add(float64(audio.BytesReceived.Load()))
	m.seqErrorsTotal.WithLabelValues("video").Add(float64(video.SequenceErrors.Load()))
	m.seqErrorsTotal.WithLabelValues("audio").Add(float64(audio.SequenceErrors.Load()))
	m.framesDropped.Add(float64(video.FrameDrops.Load()))
	m.fps.Set(videoReport.FramesPerSecond)
	m.latencyMs.Set(videoReport.AverageLatencyMs)
	m.bufferUtil.WithLabelValues("video").Set(videoReport.BufferUtilisation)
	m.bufferUtil.WithLabelValues("audio").Set(audioReport.BufferUtilisation)
}
