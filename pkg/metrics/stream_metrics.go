// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	streamMetricSubsystem = "stream"

	RawStageLabel  = "raw"
	WireStageLabel = "wire"
)

var (
	StreamMetricsRegisterOnce sync.Once

	StreamFrameTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: zeusNamespace,
		Subsystem: streamMetricSubsystem,
		Name:      "frame_total",
		Help:      "读写的帧数量",
	}, []string{directionLabelName, statusLabelName})

	StreamFrameBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: zeusNamespace,
		Subsystem: streamMetricSubsystem,
		Name:      "frame_bytes",
		Help:      "帧负载大小，raw 为压缩加密前，wire 为写入连接的大小",
		Buckets:   sizeBuckets,
	}, []string{directionLabelName, stageLabelName})
)

// RegisterStreamMetrics 将帧传输相关的指标注册到 Prometheus Registry 中。
func RegisterStreamMetrics(registry prometheus.Registerer) {
	StreamMetricsRegisterOnce.Do(func() {
		registry.MustRegister(StreamFrameTotal)
		registry.MustRegister(StreamFrameBytes)
	})
}
