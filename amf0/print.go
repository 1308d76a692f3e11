// Copyright © 2021 Kris Nóva <kris@nivenly.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package amf0

import (
	"fmt"
	"strings"
)

// HumanPrint renders v as a JSON-like diagnostic tree. The output is not
// meant to be parsed back into a Value — only AMF0's binary form
// round-trips.
func HumanPrint(v Value) string {
	var b strings.Builder
	humanPrint(&b, v, 0)
	return b.String()
}

func humanPrint(b *strings.Builder, v Value, depth int) {
	switch t := v.(type) {
	case nil, nullType:
		b.WriteString("null")
	case undefinedType:
		b.WriteString("undefined")
	case bool:
		fmt.Fprintf(b, "%t", t)
	case float64:
		fmt.Fprintf(b, "%v", t)
	case string:
		fmt.Fprintf(b, "%q", t)
	case LongString:
		fmt.Fprintf(b, "%q", string(t))
	case Date:
		fmt.Fprintf(b, "Date(%v,tz=%d)", t.Millis, t.TimeZone)
	case *Object:
		b.WriteString("{")
		printKVList(b, t.Entries, depth)
		b.WriteString("}")
	case *EcmaArray:
		fmt.Fprintf(b, "EcmaArray(n=%d){", t.Count)
		printKVList(b, t.Entries, depth)
		b.WriteString("}")
	case *StrictArray:
		b.WriteString("[")
		for i, item := range t.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			humanPrint(b, item, depth+1)
		}
		b.WriteString("]")
	default:
		fmt.Fprintf(b, "<%T>", v)
	}
}

func printKVList(b *strings.Builder, entries []KV, depth int) {
	for i, kv := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%q: ", kv.Key)
		humanPrint(b, kv.Value, depth+1)
	}
}
