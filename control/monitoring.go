// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package control

import "github.com/prometheus/client_golang/prometheus"

var (
	pusherExtraDelaySeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pixelpusher_control_pusher_extra_delay_seconds",
		Help: "Current autothrottle extra delay applied to a pusher's pacing period.",
	}, []string{"id"})

	pusherPowerScale = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pixelpusher_control_pusher_power_scale",
		Help: "Current power-budget scale applied to a pusher's strips.",
	}, []string{"id"})

	registryPowerScale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pixelpusher_control_registry_power_scale",
		Help: "Most recently computed aggregate power-budget scale.",
	})
)

// RegisterMonitoring registers this package's Prometheus metrics with reg.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(pusherExtraDelaySeconds, pusherPowerScale, registryPowerScale)
}
