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

import (
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/pkg/errors"

	"github.com/corint-sh/corint/value"
)

// transpileTS compiles a single TypeScript expression/statement list down
// to CommonJS-flavored ES2019, the same target the teacher's
// runtime/js/tscompile.go picks for its embedded-alias compiler. Grounded
// 1:1 on that file: same Loader/Target/Format/Charset choices, because
// the downstream consumer (goja) has the identical feature ceiling here
// as it does there.
func transpileTS(source string) (string, error) {
	res := api.Transform(source, api.TransformOptions{
		Loader:            api.LoaderTS,
		Target:            api.ES2019,
		Format:            api.FormatCommonJS,
		Platform:          api.PlatformDefault,
		Sourcemap:         api.SourceMapNone,
		LegalComments:     api.LegalCommentsNone,
		MinifyWhitespace:  false,
		MinifyIdentifiers: false,
		MinifySyntax:      false,
		KeepNames:         false,
		SourcesContent:    api.SourcesContentExclude,
		Charset:           api.CharsetUTF8,
	})
	if len(res.Errors) > 0 {
		return "", errors.Errorf("esbuild: %s", res.Errors[0].Text)
	}
	return string(res.Code), nil
}

// builtinTSScript is builtinScript's TypeScript-authoring sibling: it
// transpiles args[0] through esbuild before handing the resulting JS to
// the same throwaway-goja.Runtime evaluation path. Rule authors get type
// annotations, `as` casts and the rest of TS's syntax sugar for the
// script() escape hatch without changing its runtime cost profile —
// esbuild's Transform is a pure in-process call, no subprocess, no disk.
func builtinTSScript(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, arityErr("tscript", 1, 0)
	}
	if args[0].Kind() != value.KindString {
		return value.Null, errors.New("tscript: first argument must be a string")
	}

	js, err := transpileTS(args[0].AsString())
	if err != nil {
		return value.Null, errors.Wrap(err, "tscript")
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	for i, a := range args[1:] {
		if err := vm.Set("arg"+strconv.Itoa(i), value.ToGo(a)); err != nil {
			return value.Null, errors.Wrapf(err, "tscript: binding arg%d", i)
		}
	}

	done := make(chan struct{})
	var result goja.Value
	var runErr error
	go func() {
		defer close(done)
		result, runErr = vm.RunString(js)
	}()

	select {
	case <-done:
	case <-time.After(scriptTimeout):
		vm.Interrupt("tscript: timed out")
		<-done
	}

	if runErr != nil {
		return value.Null, errors.Wrap(runErr, "tscript")
	}
	if result == nil {
		return value.Null, nil
	}
	return value.FromGo(result.Export()), nil
}
