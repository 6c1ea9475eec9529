// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ssair

import (
	"go/types"

	"github.com/awslabs/ar-go-memtrace/analysis/ir"
)

// maxPointerDepth bounds the unfolding of pointer types, which may be recursive through named types
const maxPointerDepth = 8

// Type returns the IR type of a Go type: pointers are pointer types, sized integers are integer types, empty
// tuples are void and every other type is a named type printed with package names only.
func Type(t types.Type) ir.Type {
	return liftType(t, 0)
}

func liftType(t types.Type, depth int) ir.Type {
	if tuple, ok := t.(*types.Tuple); ok && tuple.Len() == 0 {
		return ir.Void
	}
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		if depth < maxPointerDepth {
			return &ir.PointerType{Elem: liftType(u.Elem(), depth+1)}
		}
	case *types.Basic:
		if bits := intBits(u); bits > 0 {
			return &ir.IntType{Bits: bits}
		}
	}
	return &ir.NamedType{Name: types.TypeString(t, packageName)}
}

func packageName(p *types.Package) string { return p.Name() }

func intBits(b *types.Basic) int {
	switch b.Kind() {
	case types.Int8, types.Uint8:
		return 8
	case types.Int16, types.Uint16:
		return 16
	case types.Int32, types.Uint32:
		return 32
	case types.Int, types.Uint, types.Int64, types.Uint64, types.Uintptr, types.UntypedInt:
		return 64
	}
	return 0
}

// isPointerLike returns true for pointers and unsafe.Pointer
func isPointerLike(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	}
	return false
}
