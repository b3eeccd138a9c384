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

package rag

import (
	"sort"

	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
)

// NeighborConfig bounds and filters the neighbors attached to each record.
type NeighborConfig struct {
	MaxNeighbors    int  `yaml:"max_neighbors"`
	IncludeOutgoing bool `yaml:"include_outgoing"`
	IncludeIncoming bool `yaml:"include_incoming"`
	PreferSameFile  bool `yaml:"prefer_same_file"`

	// EdgeLabels restricts neighbors to these labels. Empty allows all.
	EdgeLabels []model.EdgeLabel `yaml:"edge_labels"`

	// DeclaresHops is how far Declares edges are followed from a File
	// record, so it can list the methods of its classes. Other records
	// follow one hop.
	DeclaresHops int `yaml:"declares_hops"`
}

// DefaultNeighborConfig returns the enrichment defaults.
func DefaultNeighborConfig() NeighborConfig {
	return NeighborConfig{
		MaxNeighbors:    12,
		IncludeOutgoing: true,
		IncludeIncoming: true,
		PreferSameFile:  true,
		DeclaresHops:    1,
	}
}

// Enrich sets the neighbors of every record in place from the graph edges
// of its parent symbol. Chunks of one parent share the same list. Records
// whose parent is not in the graph get an empty list.
func Enrich(g *graph.Graph, records []model.RagRecord, cfg NeighborConfig) {
	allowed := make(map[model.EdgeLabel]bool, len(cfg.EdgeLabels))
	for _, l := range cfg.EdgeLabels {
		allowed[l] = true
	}
	e := enricher{g: g, cfg: cfg, allowed: allowed, cache: make(map[string][]model.Neighbor)}

	for i := range records {
		list := e.neighbors(records[i].ParentID())
		records[i].Neighbors = append([]model.Neighbor{}, list...)
	}
}

type enricher struct {
	g       *graph.Graph
	cfg     NeighborConfig
	allowed map[model.EdgeLabel]bool
	cache   map[string][]model.Neighbor
}

type candidate struct {
	node     int64
	label    model.EdgeLabel
	sameFile bool
}

func (e *enricher) neighbors(parent string) []model.Neighbor {
	if list, ok := e.cache[parent]; ok {
		return list
	}
	list := e.compute(parent)
	e.cache[parent] = list
	return list
}

func (e *enricher) allows(label model.EdgeLabel) bool {
	return len(e.allowed) == 0 || e.allowed[label]
}

func (e *enricher) compute(parent string) []model.Neighbor {
	self, ok := e.g.Lookup(parent)
	if !ok || e.cfg.MaxNeighbors <= 0 {
		return nil
	}
	file := e.g.Node(self).File

	var cands []candidate
	seen := make(map[candidate]bool)
	add := func(node int64, label model.EdgeLabel) {
		if node == self || !e.allows(label) {
			return
		}
		c := candidate{node: node, label: label, sameFile: e.g.Node(node).File == file}
		if seen[c] {
			return
		}
		seen[c] = true
		cands = append(cands, c)
	}

	if e.cfg.IncludeOutgoing {
		for _, edge := range e.g.Out(self) {
			if edge.Label == model.EdgeDeclares {
				continue
			}
			add(edge.To, edge.Label)
		}
		hops := 1
		if e.g.Node(self).Kind == model.KindFile && e.cfg.DeclaresHops > 1 {
			hops = e.cfg.DeclaresHops
		}
		for _, h := range e.g.Reachable(self, model.EdgeDeclares, hops) {
			add(h.Node, model.EdgeDeclares)
		}
	}
	if e.cfg.IncludeIncoming {
		for _, edge := range e.g.In(self) {
			add(edge.From, edge.Label)
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if e.cfg.PreferSameFile && a.sameFile != b.sameFile {
			return a.sameFile
		}
		if a.label != b.label {
			return a.label < b.label
		}
		return e.g.Node(a.node).SymbolID < e.g.Node(b.node).SymbolID
	})
	if len(cands) > e.cfg.MaxNeighbors {
		cands = cands[:e.cfg.MaxNeighbors]
	}

	out := make([]model.Neighbor, 0, len(cands))
	for _, c := range cands {
		n := e.g.Node(c.node)
		out = append(out, model.Neighbor{ID: n.SymbolID, EdgeLabel: c.label, FQN: n.FQN})
	}
	return out
}
