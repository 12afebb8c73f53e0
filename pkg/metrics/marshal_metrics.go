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
	marshalMetricSubsystem = "marshal"
)

var (
	MarshalMetricsRegisterOnce sync.Once

	MarshalSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: zeusNamespace,
		Subsystem: marshalMetricSubsystem,
		Name:      "session_total",
		Help:      "编解码会话次数，按操作与结果区分",
	}, []string{opLabelName, statusLabelName})

	MarshalSessionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: zeusNamespace,
		Subsystem: marshalMetricSubsystem,
		Name:      "session_latency",
		Help:      "单次编解码会话耗时，单位毫秒",
		Buckets:   buckets,
	}, []string{opLabelName})

	MarshalSessionBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: zeusNamespace,
		Subsystem: marshalMetricSubsystem,
		Name:      "session_bytes",
		Help:      "单次会话产生或消费的字节数",
		Buckets:   sizeBuckets,
	}, []string{opLabelName})

	MarshalLinkEntries = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: zeusNamespace,
		Subsystem: marshalMetricSubsystem,
		Name:      "link_entries",
		Help:      "会话结束时对象引用表中的条目数",
		Buckets:   entryBuckets,
	}, []string{opLabelName})

	MarshalErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: zeusNamespace,
		Subsystem: marshalMetricSubsystem,
		Name:      "error_total",
		Help:      "编解码失败次数，按错误码区分",
	}, []string{opLabelName, codeLabelName})

	MarshalBatchInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: zeusNamespace,
		Subsystem: marshalMetricSubsystem,
		Name:      "batch_inflight",
		Help:      "批量接口中正在执行的会话数",
	})
)

// RegisterMarshalMetrics 将编解码相关的指标注册到 Prometheus Registry 中。
func RegisterMarshalMetrics(registry prometheus.Registerer) {
	MarshalMetricsRegisterOnce.Do(func() {
		registry.MustRegister(MarshalSessionTotal)
		registry.MustRegister(MarshalSessionLatency)
		registry.MustRegister(MarshalSessionBytes)
		registry.MustRegister(MarshalLinkEntries)
		registry.MustRegister(MarshalErrorTotal)
		registry.MustRegister(MarshalBatchInflight)
	})
}
