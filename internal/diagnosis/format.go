/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package diagnosis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"money":  func(v any) string { return Money(toFloat(v)) },
	"number": func(v any) string { return Number(toFloat(v)) },
	"pct":    func(v any) string { return Percent(toFloat(v)) },
	"join":   join,
}

// Money formats v as dollars with thousands separators, e.g. $1,234.50.
func Money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := int64(math.Round(v * 100))
	return fmt.Sprintf("%s$%s.%02d", sign, group(cents/100), cents%100)
}

// Number formats v as an integer with thousands separators when whole,
// and with two decimals otherwise.
func Number(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		n := int64(v)
		if n < 0 {
			return "-" + group(-n)
		}
		return group(n)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Percent formats v, already a percentage, with two decimals.
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func group(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return math.NaN()
	}
}

func join(v any, sep string) string {
	switch list := v.(type) {
	case []string:
		return strings.Join(list, sep)
	case []any:
		parts := make([]string, len(list))
		for i, p := range list {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(v)
	}
}
