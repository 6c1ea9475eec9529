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

package tracefile

import (
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AddressRange is the smallest interval containing a set of addresses
type AddressRange struct {
	Low  uint64 `json:"low"`
	High uint64 `json:"high"`
}

// LabelSummary summarizes the records with the same label
type LabelSummary struct {
	Label string `json:"label"`
	// Count is the number of records
	Count int `json:"count"`
	// Unique is the number of distinct addresses
	Unique int `json:"unique"`
	// Range contains all the addresses
	Range AddressRange `json:"range"`
}

// Summary reconstructs, from a trace, which addresses have been accessed under each label.
type Summary struct {
	Records int            `json:"records"`
	Labels  []LabelSummary `json:"labels"`

	addresses map[string]map[uint64]bool
}

// Summarize builds the summary of the records. Labels are sorted.
func Summarize(records []Record) *Summary {
	s := &Summary{Records: len(records), addresses: map[string]map[uint64]bool{}}
	perLabel := map[string]*LabelSummary{}
	for _, r := range records {
		ls, ok := perLabel[r.Label]
		if !ok {
			ls = &LabelSummary{Label: r.Label, Range: AddressRange{Low: r.Address, High: r.Address}}
			perLabel[r.Label] = ls
			s.addresses[r.Label] = map[uint64]bool{}
		}
		ls.Count++
		if r.Address < ls.Range.Low {
			ls.Range.Low = r.Address
		}
		if r.Address > ls.Range.High {
			ls.Range.High = r.Address
		}
		s.addresses[r.Label][r.Address] = true
	}
	labels := maps.Keys(perLabel)
	slices.Sort(labels)
	for _, l := range labels {
		ls := perLabel[l]
		ls.Unique = len(s.addresses[l])
		s.Labels = append(s.Labels, *ls)
	}
	return s
}

// Addresses returns the sorted distinct addresses recorded with the label.
func (s *Summary) Addresses(label string) []uint64 {
	addrs := maps.Keys(s.addresses[label])
	slices.Sort(addrs)
	return addrs
}

// Overlap returns the sorted addresses recorded under both labels, e.g. addresses read as inputs and written as
// outputs.
func (s *Summary) Overlap(label1, label2 string) []uint64 {
	var res []uint64
	for a := range s.addresses[label1] {
		if s.addresses[label2][a] {
			res = append(res, a)
		}
	}
	slices.Sort(res)
	return res
}

// Fprint prints the summary in a human-readable form
func (s *Summary) Fprint(w io.Writer) {
	fmt.Fprintf(w, "%d records\n", s.Records)
	for _, ls := range s.Labels {
		fmt.Fprintf(w, "  %-8s %8d accesses, %8d addresses in [0x%x, 0x%x]\n",
			ls.Label, ls.Count, ls.Unique, ls.Range.Low, ls.Range.High)
	}
}
