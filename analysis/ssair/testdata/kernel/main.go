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

type Params struct {
	Scale    float32
	MinValue float32
}

func FullyConnected(params *Params, inputShape []int, input []float32, filterShape []int, filter []float32,
	biasShape []int, bias []float32, outputShape []int, output []float32) {
	batches := outputShape[0]
	outDepth := outputShape[1]
	accumDepth := inputShape[1]
	for b := 0; b < batches; b++ {
		for o := 0; o < outDepth; o++ {
			var total float32
			for d := 0; d < accumDepth; d++ {
				total += input[b*accumDepth+d] * filter[o*accumDepth+d] // @Access(INPUT)
			}
			if len(bias) > o {
				total += bias[o]
			}
			if total < params.MinValue {
				total = params.MinValue
			}
			output[b*outDepth+o] = total * params.Scale // @Access(OUTPUT)
		}
	}
	if len(output) > 0 && output[0] != output[0] {
		input[0] = 0
	}
}

func copyRow(dst []float32, src []float32) {
	for i := range src {
		dst[i] = src[i]
	}
}

func main() {
	params := &Params{Scale: 1, MinValue: -10}
	input := []float32{1, 2, 3, 4}
	filter := []float32{1, 0, 0, 1}
	output := make([]float32, 4)
	FullyConnected(params, []int{2, 2}, input, []int{2, 2}, filter, nil, nil, []int{2, 2}, output)
	row := make([]float32, 2)
	copyRow(row, output[:2])
	fmt.Println(output, row)
}
