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

package tokens

type Kind string

const (
	EOF    Kind = "EOF"
	Error  Kind = "Error"
	Ident  Kind = "Ident" // also carries bareword operators: in, not, contains, starts_with, ends_with, regex, true, false, null
	String Kind = "String"
	Number Kind = "Number"

	TokenAnd Kind = "&&"
	TokenOr  Kind = "||"
	TokenRegexOp Kind = "=~"

	TokenEq    Kind = "=="
	TokenNeq   Kind = "!="
	TokenLte   Kind = "<="
	TokenGte   Kind = ">="
	TokenLt    Kind = "<"
	TokenGt    Kind = ">"
	TokenPlus  Kind = "+"
	TokenMinus Kind = "-"
	TokenMul   Kind = "*"
	TokenDiv   Kind = "/"
	TokenMod   Kind = "%"
	TokenBang  Kind = "!"
	TokenDot   Kind = "."

	TokenQuestion Kind = "?"
	PunctColon    Kind = ":"
	PunctComma    Kind = ","

	PunctLeftParen  Kind = "("
	PunctRightParen Kind = ")"
	PunctLeftBrack  Kind = "["
	PunctRightBrack Kind = "]"
)

func (k Kind) String() string { return string(k) }
