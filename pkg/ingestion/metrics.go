// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
)

// metricsIngestion holds Prometheus metrics for the indexing pipeline.
type metricsIngestion struct {
	once sync.Once

	// Scan
	filesScanned prometheus.Counter
	filesSkipped *prometheus.CounterVec

	// Extraction
	extractErrors *prometheus.CounterVec
	nodesByKind   *prometheus.CounterVec

	// Graph
	edgesByLabel *prometheus.CounterVec
	unresolved   prometheus.Counter

	// Records
	ragRecords  prometheus.Counter
	chunksSplit prometheus.Counter

	// Durations
	stageDuration *prometheus.HistogramVec
	totalDuration prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesScanned = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_files_scanned_total", Help: "Archivos aceptados por el scanner"})
		m.filesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codegraph_files_skipped_total", Help: "Archivos descartados por motivo"}, []string{"reason"})

		m.extractErrors = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codegraph_extract_errors_total", Help: "Errores de extracción por lenguaje y etapa"}, []string{"language", "stage"})
		m.nodesByKind = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codegraph_ast_nodes_total", Help: "Nodos AST extraídos por tipo"}, []string{"kind"})

		m.edgesByLabel = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codegraph_graph_edges_total", Help: "Aristas del grafo por etiqueta"}, []string{"label"})
		m.unresolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_unresolved_directives_total", Help: "Directivas sin destino conocido"})

		m.ragRecords = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_rag_records_total", Help: "Registros RAG emitidos"})
		m.chunksSplit = prometheus.NewCounter(prometheus.CounterOpts{Name: "codegraph_chunks_split_total", Help: "Entidades divididas en varios chunks"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "codegraph_stage_seconds", Help: "Duración por etapa del pipeline", Buckets: buckets}, []string{"stage"})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codegraph_total_seconds", Help: "Duración total de la ejecución", Buckets: buckets})

		prometheus.MustRegister(
			m.filesScanned, m.filesSkipped,
			m.extractErrors, m.nodesByKind,
			m.edgesByLabel, m.unresolved,
			m.ragRecords, m.chunksSplit,
			m.stageDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the pipeline for metrics tracking
func recordScan(files int, skipped map[string]int) {
	ingMetrics.init()
	ingMetrics.filesScanned.Add(float64(files))
	for reason, n := range skipped {
		ingMetrics.filesSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

func recordExtractError(lang model.Language, stage string) {
	ingMetrics.init()
	ingMetrics.extractErrors.WithLabelValues(string(lang), stage).Inc()
}

func recordNodes(nodes []model.AstNode) {
	ingMetrics.init()
	for _, n := range nodes {
		ingMetrics.nodesByKind.WithLabelValues(string(n.Kind)).Inc()
	}
}

func recordGraph(g *graph.Graph, unresolved int) {
	ingMetrics.init()
	for _, e := range g.Edges() {
		ingMetrics.edgesByLabel.WithLabelValues(string(e.Label)).Inc()
	}
	ingMetrics.unresolved.Add(float64(unresolved))
}

func recordRecords(records, split int) {
	ingMetrics.init()
	ingMetrics.ragRecords.Add(float64(records))
	ingMetrics.chunksSplit.Add(float64(split))
}

func observeStage(stage string, d time.Duration) {
	ingMetrics.init()
	ingMetrics.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func observeTotal(d time.Duration) {
	ingMetrics.init()
	ingMetrics.totalDuration.Observe(d.Seconds())
}
