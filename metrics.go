// Copyright 2025 Alshival
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alshival

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Forward outcomes recorded by Metrics.
const (
	outcomeDelivered = "delivered"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Metrics counts forwarding decisions and transport outcomes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	forwarded *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

// NewMetrics creates the forwarding counters and registers them with reg.
// A nil reg leaves the counters unregistered. Collectors that are already
// registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alshival",
			Name:      "forward_total",
			Help:      "Records handed to the collector transport, by outcome (delivered, rejected, failed).",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alshival",
			Name:      "forward_dropped_total",
			Help:      "Records not forwarded to the collector, by reason.",
		}, []string{"reason"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	m.forwarded, err = registerCounterVec(reg, m.forwarded)
	if err != nil {
		return nil, err
	}
	m.dropped, err = registerCounterVec(reg, m.dropped)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) incDropped(reason DropReason) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) incForwarded(outcome string) {
	if m == nil {
		return
	}
	m.forwarded.WithLabelValues(outcome).Inc()
}
