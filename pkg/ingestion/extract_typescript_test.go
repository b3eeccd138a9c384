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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/codegraph/pkg/model"
)

const tsService = `import { Injectable } from '@angular/core';
import * as path from 'path';
import Default from './default';
export * from './types';

/** Loads users. */
@Injectable()
export class UserService {
  private cache: Map<string, User>;
  protected readonly name = 'users';
  #secret = 1;

  constructor(private http: Http) {}

  async load(id: string): Promise<User> {
    return this.http.get(id);
  }
}

export interface User {
  id: string;
  greet(): void;
}

enum Role { Admin, Guest = 'guest' }

export type Id = string | number;

export const toId = (u: User): Id => u.id;

const limit = 10;

function helper(a: number): number {
  return a + 1;
}
`

func TestTypeScriptExtractor_Imports(t *testing.T) {
	nodes := extract(t, "src/user.ts", tsService, testExtractOptions())

	core := mustFind(t, nodes, model.KindImport, "@angular/core")
	assert.Empty(t, core.ResolvedTarget)
	assert.Equal(t, "@angular/core", core.ImportURI)

	ns := mustFind(t, nodes, model.KindImport, "path")
	assert.Equal(t, "path", ns.ImportAlias)

	def := mustFind(t, nodes, model.KindImport, "./default")
	assert.Equal(t, "Default", def.ImportAlias)

	mustFind(t, nodes, model.KindExport, "./types")
}

func TestTypeScriptExtractor_Class(t *testing.T) {
	nodes := extract(t, "src/user.ts", tsService, testExtractOptions())

	svc := mustFind(t, nodes, model.KindClass, "UserService")
	assert.Equal(t, model.VisibilityPublic, svc.Visibility)
	assert.Equal(t, "Loads users.", svc.Doc)
	assert.Contains(t, svc.Annotations, model.Annotation{Name: "Injectable"})
	assert.Equal(t, 7, svc.Span.StartLine, "span starts at the decorator")

	cache := mustFind(t, nodes, model.KindField, "cache")
	assert.Equal(t, []string{"UserService"}, cache.OwnerPath)
	assert.Equal(t, model.VisibilityPrivate, cache.Visibility)

	name := mustFind(t, nodes, model.KindField, "name")
	assert.Equal(t, model.VisibilityProtected, name.Visibility)

	secret := mustFind(t, nodes, model.KindField, "#secret")
	assert.Equal(t, model.VisibilityPrivate, secret.Visibility)

	load := mustFind(t, nodes, model.KindMethod, "load")
	assert.Equal(t, "async load(id: string): Promise<User>", load.Signature)
	assert.Equal(t, "src/user.ts::UserService.load", load.FQN)
	assert.Equal(t, model.VisibilityPublic, load.Visibility)

	mustFind(t, nodes, model.KindMethod, "constructor")
}

func TestTypeScriptExtractor_TopLevel(t *testing.T) {
	nodes := extract(t, "src/user.ts", tsService, testExtractOptions())

	user := mustFind(t, nodes, model.KindInterface, "User")
	assert.Equal(t, model.VisibilityPublic, user.Visibility)
	id := mustFind(t, nodes, model.KindField, "id")
	assert.Equal(t, []string{"User"}, id.OwnerPath)
	greet := mustFind(t, nodes, model.KindMethod, "greet")
	assert.Equal(t, []string{"User"}, greet.OwnerPath)

	role := mustFind(t, nodes, model.KindEnum, "Role")
	assert.Equal(t, model.VisibilityPrivate, role.Visibility)
	for _, m := range []string{"Admin", "Guest"} {
		member := mustFind(t, nodes, model.KindField, m)
		assert.Equal(t, []string{"Role"}, member.OwnerPath)
	}

	alias := mustFind(t, nodes, model.KindTypeAlias, "Id")
	assert.Equal(t, "type Id = string | number", alias.Signature)

	toID := mustFind(t, nodes, model.KindFunction, "toId")
	assert.Equal(t, model.VisibilityPublic, toID.Visibility)
	assert.Contains(t, toID.Snippet, "u.id")

	limit := mustFind(t, nodes, model.KindVariable, "limit")
	assert.Equal(t, model.VisibilityPrivate, limit.Visibility)
	assert.Equal(t, "const limit = 10", limit.Signature)

	helper := mustFind(t, nodes, model.KindFunction, "helper")
	assert.Equal(t, "function helper(a: number): number", helper.Signature)
	assert.Equal(t, model.VisibilityPrivate, helper.Visibility)
}

func TestJavaScriptExtractor_Require(t *testing.T) {
	src := `const fs = require('fs');
const { join } = require("path");

function main() {
  const local = require('./local');
  return local;
}

module.exports = { main };
`
	nodes := extract(t, "bin/cli.js", src, testExtractOptions())
	assert.Equal(t, model.LangJavaScript, nodes[0].Language)

	for _, uri := range []string{"fs", "path", "./local"} {
		imp := mustFind(t, nodes, model.KindImport, uri)
		assert.Equal(t, uri, imp.ImportURI)
	}
	mustFind(t, nodes, model.KindVariable, "fs")
	mustFind(t, nodes, model.KindFunction, "main")
	assert.Nil(t, find(nodes, model.KindVariable, "join"), "destructuring patterns are skipped")
}

func TestTypeScriptExtractor_TSX(t *testing.T) {
	src := "export function App(): JSX.Element {\n  return <div className=\"app\" />;\n}\n"
	nodes := extract(t, "src/App.tsx", src, testExtractOptions())

	app := mustFind(t, nodes, model.KindFunction, "App")
	assert.Equal(t, model.LangTypeScript, app.Language)
	assert.Equal(t, model.VisibilityPublic, app.Visibility)
}
