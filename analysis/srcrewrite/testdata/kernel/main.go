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

package main

import "fmt"

var calls int

func next() int {
	calls++
	return 0
}

func FullyConnected(scale *float32, inputShape []int, input []float32, filterShape []int, filter []float32,
	biasShape []int, bias []float32, outputShape []int, output []float32) {
	n := len(output)
	depth := inputShape[0]
	for o := 0; o < n; o++ {
		var total float32
		for d := 0; d < depth; d++ {
			total += input[o*depth+d] * filter[d]
		}
		if total > 0 && input[o] > 0 {
			total *= *scale
		}
		output[o] = total
	}
	for i := 0; input[i] < 0 && i < 1; i++ {
	}
	first := input[next()]
	output[0] += first //memtrace:ignore
}

func bump(p *int) {
	*p = *p + 1
}

func main() {
	scale := float32(2)
	input := []float32{1, 2, 3, 4}
	output := make([]float32, 2)
	FullyConnected(&scale, []int{2}, input, []int{2}, []float32{1, 1}, nil, nil, []int{2}, output)
	x := 0
	bump(&x)
	fmt.Println(output, x)
}
