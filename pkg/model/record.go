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

package model

// EdgeLabel is the closed tag set of graph edge labels. Direction is always
// "source depends on or contains target".
type EdgeLabel string

const (
	EdgeDeclares         EdgeLabel = "Declares"
	EdgeImports          EdgeLabel = "Imports"
	EdgeExports          EdgeLabel = "Exports"
	EdgeImportsViaExport EdgeLabel = "ImportsViaExport"
	EdgePart             EdgeLabel = "Part"
	EdgeSameFile         EdgeLabel = "SameFile"
	EdgeCalls            EdgeLabel = "Calls"
	EdgeInherits         EdgeLabel = "Inherits"
	EdgeImplements       EdgeLabel = "Implements"
	EdgeExtends          EdgeLabel = "Extends"
	EdgeUses             EdgeLabel = "Uses"
	EdgeDecorates        EdgeLabel = "Decorates"
	EdgeReexports        EdgeLabel = "Reexports"
	EdgeRoutesTo         EdgeLabel = "RoutesTo"
)

// AllEdgeLabels lists every label, including the reserved ones.
var AllEdgeLabels = []EdgeLabel{
	EdgeDeclares, EdgeImports, EdgeExports, EdgeImportsViaExport, EdgePart, EdgeSameFile,
	EdgeCalls, EdgeInherits, EdgeImplements, EdgeExtends, EdgeUses, EdgeDecorates,
	EdgeReexports, EdgeRoutesTo,
}

// ParseEdgeLabel returns the label named s.
func ParseEdgeLabel(s string) (EdgeLabel, bool) {
	for _, l := range AllEdgeLabels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// ChunkMeta places a record within its parent entity. Index is 1-based.
type ChunkMeta struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	ParentID string `json:"parent_id"`
}

// Neighbor references a graph-adjacent symbol.
type Neighbor struct {
	ID        string    `json:"id"`
	EdgeLabel EdgeLabel `json:"edge_label"`
	FQN       string    `json:"fqn,omitempty"`
}

// Metrics are cheap size figures for one record.
type Metrics struct {
	LOC    int `json:"loc"`
	Params int `json:"params"`
}

// RagRecord is the retrieval-facing projection of one node or one of its chunks.
type RagRecord struct {
	ID          string     `json:"id"`
	Path        string     `json:"path"`
	Language    Language   `json:"language"`
	Kind        Kind       `json:"kind"`
	Name        string     `json:"name"`
	FQN         string     `json:"fqn"`
	Snippet     string     `json:"snippet"`
	Doc         string     `json:"doc,omitempty"`
	Signature   string     `json:"signature,omitempty"`
	OwnerPath   []string   `json:"owner_path"`
	Chunk       *ChunkMeta `json:"chunk,omitempty"`
	Neighbors   []Neighbor `json:"neighbors"`
	Tags        []string   `json:"tags"`
	Metrics     Metrics    `json:"metrics"`
	HashContent string     `json:"hash_content,omitempty"`
}

// ParentID returns the symbol the record was derived from.
func (r RagRecord) ParentID() string {
	if r.Chunk != nil {
		return r.Chunk.ParentID
	}
	return r.ID
}
