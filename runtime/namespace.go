// SPDX-License-Identifier: Apache-2.0

// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import "github.com/corint-sh/corint/value"

// Namespace names one of the eight disjoint ExecutionContext maps
// (spec §3, §4.5).
type Namespace string

const (
	NSEvent    Namespace = "event"
	NSFeatures Namespace = "features"
	NSAPI      Namespace = "api"
	NSService  Namespace = "service"
	NSLLM      Namespace = "llm"
	NSVars     Namespace = "vars"
	NSSys      Namespace = "sys"
	NSEnv      Namespace = "env"
)

// readOnlyNamespaces are fixed at ExecutionContext construction time and
// never mutate afterward (spec §3 invariant).
var readOnlyNamespaces = map[Namespace]struct{}{
	NSEvent: {},
	NSSys:   {},
	NSEnv:   {},
}

func (n Namespace) readOnly() bool {
	_, ok := readOnlyNamespaces[n]
	return ok
}

// isNamespace reports whether name is one of the eight namespace names.
func isNamespace(name string) bool {
	switch Namespace(name) {
	case NSEvent, NSFeatures, NSAPI, NSService, NSLLM, NSVars, NSSys, NSEnv:
		return true
	default:
		return false
	}
}

// navigate walks obj through path, returning Null at the first missing
// key or non-object traversal — field lookup never errors (spec §4.5).
func navigate(obj map[string]value.Value, path []string) value.Value {
	if len(path) == 0 {
		return value.Object(obj)
	}
	cur := value.Object(obj)
	for _, seg := range path {
		if cur.Kind() != value.KindObject {
			return value.Null
		}
		cur = cur.Get(seg)
	}
	return cur
}

// setDotted writes v at path within ns, creating intermediate objects
// as needed (spec §4.5: "Store{name} supports dotted paths").
func setDotted(ns map[string]value.Value, path []string, v value.Value) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		ns[path[0]] = v
		return
	}
	head := path[0]
	var child map[string]value.Value
	if existing, ok := ns[head]; ok && existing.Kind() == value.KindObject {
		child = existing.AsObject()
	} else {
		child = map[string]value.Value{}
	}
	setDotted(child, path[1:], v)
	ns[head] = value.Object(child)
}
