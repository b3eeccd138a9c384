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

// Package testing provides fixture helpers for codegraph tests.
//
// # Quick Start
//
// Use WriteRepo to lay out a small repository in a temp dir:
//
//	func TestPipeline(t *testing.T) {
//	    root := testing.WriteRepo(t, map[string]string{
//	        "lib/a.dart": "import 'b.dart';\nclass A {}\n",
//	        "lib/b.dart": "class B {}\n",
//	    })
//
//	    res, err := pipeline.Run(ctx, root)
//	    require.NoError(t, err)
//	}
//
// # Reading Output
//
// ReadJSONL decodes one exported stream:
//   - ast_nodes.jsonl into model.AstNode
//   - rag_records.jsonl into model.RagRecord
package testing
