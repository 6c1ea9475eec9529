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

package funcutil

import (
	"strconv"
	"testing"
)

func TestOptional(t *testing.T) {
	x := Some(3)
	if !x.IsSome() || x.IsNone() || x.Value() != 3 || x.ValueOr(4) != 3 {
		t.Errorf("unexpected behavior of Some: %v", x)
	}
	y := None[int]()
	if y.IsSome() || !y.IsNone() || y.ValueOr(4) != 4 {
		t.Errorf("unexpected behavior of None: %v", y)
	}
	var zero Optional[int]
	if zero.IsSome() {
		t.Errorf("zero optional should be none")
	}
	if s := MapOption(x, strconv.Itoa); s.Value() != "3" {
		t.Errorf("expected some \"3\", got %v", s)
	}
	if s := MapOption(y, strconv.Itoa); s.IsSome() {
		t.Errorf("expected none, got %v", s)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Value of none should panic")
		}
	}()
	y.Value()
}

func TestCollections(t *testing.T) {
	a := []int{1, 2, 3, 4}
	even := func(x int) bool { return x%2 == 0 }
	if b := Filter(a, even); len(b) != 2 || b[0] != 2 || b[1] != 4 {
		t.Errorf("unexpected filter result %v", b)
	}
	if s := Map(a, strconv.Itoa); s[3] != "4" {
		t.Errorf("unexpected map result %v", s)
	}
	if !Exists(a, even) || Exists(a, func(x int) bool { return x > 4 }) {
		t.Errorf("unexpected exists result")
	}
	if !Contains(a, 3) || Contains(a, 5) {
		t.Errorf("unexpected contains result")
	}
	if r := FindMap(a, func(x int) int { return x * 10 }, func(x int) bool { return x > 15 }); r.Value() != 20 {
		t.Errorf("unexpected find result %v", r)
	}
	if keys := SortedKeys(map[string]int{"b": 1, "a": 2, "c": 3}); keys[0] != "a" || keys[2] != "c" {
		t.Errorf("unexpected keys %v", keys)
	}
	if Sum(a, func(x int) int { return x }) != 10 {
		t.Errorf("unexpected sum")
	}
}
