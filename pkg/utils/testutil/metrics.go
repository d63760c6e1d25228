// Copyright 2019-2025 The Liqo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testutil

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// ParseMetrics parses metrics in the Prometheus text format and returns the metric families by name.
func ParseMetrics(body io.Reader) (map[string]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	return parser.TextToMetricFamilies(body)
}

// RetrieveCounter returns the value of the counter of the given family matching the label selectors.
func RetrieveCounter(families map[string]*dto.MetricFamily, name string, selectors map[string]string) (float64, error) {
	mf, ok := families[name]
	if !ok {
		return 0, fmt.Errorf("metric family %s not found", name)
	}

	for _, metric := range mf.GetMetric() {
		labels := make(map[string]string, len(metric.GetLabel()))
		for _, pair := range metric.GetLabel() {
			labels[pair.GetName()] = pair.GetValue()
		}

		match := true
		for key, value := range selectors {
			if labels[key] != value {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		counter := metric.GetCounter()
		if counter == nil {
			return 0, fmt.Errorf("metric %s is not a counter", name)
		}
		return counter.GetValue(), nil
	}
	return 0, fmt.Errorf("metric %s with labels %v not found", name, selectors)
}
