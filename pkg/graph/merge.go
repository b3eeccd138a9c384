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

package graph

// Merge unions graphs into a fresh one. Nodes are cloned first and every
// edge is remapped through the old-to-new index table of its input, so no
// index is shared with an input and no edge can dangle. Input order only
// affects vertex numbering.
func Merge(graphs ...*Graph) *Graph {
	out := New()
	for _, in := range graphs {
		if in == nil {
			continue
		}
		remap := make([]int64, in.Len())
		for i, n := range in.Nodes() {
			remap[i] = out.AddNode(n.Clone())
		}
		for _, e := range in.Edges() {
			out.AddEdge(remap[e.From], remap[e.To], e.Label)
		}
	}
	return out
}
