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

import (
	"fmt"
	"unsafe"

	"github.com/awslabs/ar-go-memtrace/runtime/memlog"
)

func FullyConnected(scale *float32, inputShape []int, input []float32, filterShape []int, filter []float32,
	biasShape []int, bias []float32, outputShape []int, output []float32) {
	n := len(output)
	depth := inputShape[0]
	for o := 0; o < n; o++ {
		var total float32
		for d := 0; d < depth; d++ {
			memlog.LogMemAccess(unsafe.Pointer(&input[o*depth+d]), 0)
			total += input[o*depth+d] * filter[d]
		}
		memlog.LogMemAccess(unsafe.Pointer(&output[o]), 1)
		output[o] = total
	}
}

func main() {
	defer memlog.Shutdown()
	input := []float32{1, 2, 3, 4}
	output := make([]float32, 2)
	FullyConnected(nil, []int{2}, input, []int{2}, []float32{1, 1}, nil, nil, []int{2}, output)
	fmt.Println(output)
}

// memtrace: labels of the logged accesses
func init() {
	memlog.SetScheme("buffer")
}
