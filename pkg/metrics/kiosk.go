package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "kiosk"

// Config push reasons.
const (
	PushReasonHandshake = "handshake"
	PushReasonHeartbeat = "heartbeat"
)

// Remote vend events.
const (
	RemoteVendQueued    = "queued"
	RemoteVendDelivered = "delivered"
)

// KioskMetrics counts device protocol traffic. A nil receiver records nothing.
type KioskMetrics struct {
	heartbeats     prometheus.Counter
	configPushes   *prometheus.CounterVec
	inventoryItems *prometheus.CounterVec
	remoteVends    *prometheus.CounterVec
	versionBumps   *prometheus.CounterVec
	offline        prometheus.Gauge
}

// NewKioskMetrics registers the protocol metrics on the provided registerer.
func NewKioskMetrics(reg prometheus.Registerer) *KioskMetrics {
	if reg == nil {
		return &KioskMetrics{}
	}
	m := &KioskMetrics{
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeats accepted from devices.",
		}),
		configPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_pushes_total",
			Help:      "Config snapshots built and returned to devices.",
		}, []string{"reason"}),
		inventoryItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_items_total",
			Help:      "Inventory items processed from device pushes.",
		}, []string{"result", "mode"}),
		remoteVends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_vends_total",
			Help:      "Remote vend requests queued and delivered.",
		}, []string{"event"}),
		versionBumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_version_bumps_total",
			Help:      "Config version increments by mutation kind.",
		}, []string{"reason"}),
		offline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosks_offline",
			Help: "Active kiosks without a recent heartbeat.",
		}),
	}
	reg.MustRegister(m.heartbeats, m.configPushes, m.inventoryItems, m.remoteVends, m.versionBumps, m.offline)
	return m
}

func (m *KioskMetrics) IncHeartbeat() {
	if m == nil || m.heartbeats == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *KioskMetrics) IncConfigPush(reason string) {
	if m == nil || m.configPushes == nil {
		return
	}
	m.configPushes.WithLabelValues(normalizeLabel(reason)).Inc()
}

// AddInventory records the outcome of one inventory push.
func (m *KioskMetrics) AddInventory(mode string, updated, skipped int) {
	if m == nil || m.inventoryItems == nil {
		return
	}
	mode = normalizeLabel(mode)
	m.inventoryItems.WithLabelValues("updated", mode).Add(float64(updated))
	m.inventoryItems.WithLabelValues("skipped", mode).Add(float64(skipped))
}

func (m *KioskMetrics) IncRemoteVend(event string) {
	if m == nil || m.remoteVends == nil {
		return
	}
	m.remoteVends.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *KioskMetrics) IncConfigBump(reason string) {
	if m == nil || m.versionBumps == nil {
		return
	}
	m.versionBumps.WithLabelValues(normalizeLabel(reason)).Inc()
}

// SetOffline publishes the latest offline kiosk count.
func (m *KioskMetrics) SetOffline(count int) {
	if m == nil || m.offline == nil {
		return
	}
	m.offline.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
