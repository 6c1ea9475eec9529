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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// A Record is one line of a trace: the label of the access and the address accessed.
type Record struct {
	Label   string
	Address uint64
}

func (r Record) String() string {
	return FormatRecord(r.Label, r.Address)
}

// FormatRecord returns the line for an access, without the trailing newline.
func FormatRecord(label string, address uint64) string {
	return label + " 0x" + strconv.FormatUint(address, 16)
}

// AppendRecord appends the line for an access, with its trailing newline, to buf.
func AppendRecord(buf []byte, label string, address uint64) []byte {
	buf = append(buf, label...)
	buf = append(buf, " 0x"...)
	buf = strconv.AppendUint(buf, address, 16)
	return append(buf, '\n')
}

// ParseRecord parses one line of a trace. Addresses are hexadecimal with a 0x prefix; "(nil)" is accepted for the
// null address.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Record{}, fmt.Errorf("expected \"LABEL ADDRESS\", got %q", line)
	}
	if fields[1] == "(nil)" {
		return Record{Label: fields[0]}, nil
	}
	if !strings.HasPrefix(fields[1], "0x") && !strings.HasPrefix(fields[1], "0X") {
		return Record{}, fmt.Errorf("address %q is not hexadecimal", fields[1])
	}
	addr, err := strconv.ParseUint(fields[1][2:], 16, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid address %q: %w", fields[1], err)
	}
	return Record{Label: fields[0], Address: addr}, nil
}

// A Reader reads the records of a trace one by one.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader returns a reader of the records in r
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next record. It returns io.EOF after the last record. Blank lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

// ReadAll reads all the records in r, in order.
func ReadAll(r io.Reader) ([]Record, error) {
	reader := NewReader(r)
	var records []Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
