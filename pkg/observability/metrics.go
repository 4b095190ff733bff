// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// metricsProvider bundles the OTel MeterProvider driving a PrometheusMetrics
// instance with the HTTP handler its exporter bridge feeds, so Shutdown can
// be wired through Manager without leaking either.
type metricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	handler       http.Handler
}

func (p *metricsProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}

// NewMetrics builds the OpenTelemetry instrument set backing a PrometheusMetrics
// and the HTTP handler that exposes them in Prometheus exposition format.
// Returns (nil, nil, nil) when metrics are disabled.
func NewMetrics(cfg *MetricsConfig) (*PrometheusMetrics, *metricsProvider, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil, nil
	}
	cfg.SetDefaults()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := meterProvider.Meter(cfg.Namespace)

	metrics, err := NewPrometheusMetrics(meter)
	if err != nil {
		return nil, nil, err
	}

	provider := &metricsProvider{
		meterProvider: meterProvider,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	return metrics, provider, nil
}
