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

package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/kraklabs/codegraph/pkg/graph"
)

var graphMLEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes the five XML special characters and drops characters
// XML 1.0 forbids: C0 controls other than tab, newline and carriage return,
// and U+FFFE and U+FFFF.
func EscapeXML(s string) string {
	return graphMLEscaper.Replace(strings.Map(xmlChar, s))
}

func xmlChar(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r < 0x20, r == 0xFFFE, r == 0xFFFF:
		return -1
	}
	return r
}

const graphMLHeader = `<?xml version="1.0" encoding="UTF-8"?>
<graphml xmlns="http://graphml.graphdrawing.org/xmlns">
  <key id="name" for="node" attr.name="name" attr.type="string"/>
  <key id="kind" for="node" attr.name="kind" attr.type="string"/>
  <key id="file" for="node" attr.name="file" attr.type="string"/>
  <key id="symbol_id" for="node" attr.name="symbol_id" attr.type="string"/>
  <key id="label" for="edge" attr.name="label" attr.type="string"/>
  <graph id="G" edgedefault="directed">
`

// WriteGraphML renders g with node and edge ids equal to the JSONL ordinals.
func WriteGraphML(w io.Writer, g *graph.Graph) error {
	if _, err := io.WriteString(w, graphMLHeader); err != nil {
		return err
	}
	for i, n := range g.Nodes() {
		_, err := fmt.Fprintf(w,
			"    <node id=\"n%d\">\n"+
				"      <data key=\"name\">%s</data>\n"+
				"      <data key=\"kind\">%s</data>\n"+
				"      <data key=\"file\">%s</data>\n"+
				"      <data key=\"symbol_id\">%s</data>\n"+
				"    </node>\n",
			i, EscapeXML(n.Name), EscapeXML(string(n.Kind)), EscapeXML(n.File), EscapeXML(n.SymbolID))
		if err != nil {
			return err
		}
	}
	for i, e := range g.Edges() {
		_, err := fmt.Fprintf(w,
			"    <edge id=\"e%d\" source=\"n%d\" target=\"n%d\">\n"+
				"      <data key=\"label\">%s</data>\n"+
				"    </edge>\n",
			i, e.From, e.To, EscapeXML(string(e.Label)))
		if err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "  </graph>\n</graphml>\n")
	return err
}
