/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package fields carries the structured key/value pairs attached to a log
// entry: connection-id, request-id, identity, operation and the like.
package fields

import "time"

// Field is a single structured attribute attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// String builds a string-valued Field.
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int builds an int-valued Field.
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Int64 builds an int64-valued Field.
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}

// Bool builds a bool-valued Field.
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Duration builds a time.Duration-valued Field.
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val}
}

// Err builds a Field named "error" from err, or a no-op Field if err is nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Map renders a slice of Field into a key/value map, the shape hclog and
// most structured sinks expect.
func Map(f []Field) map[string]any {
	m := make(map[string]any, len(f))
	for _, i := range f {
		m[i.Key] = i.Value
	}
	return m
}

// Pairs flattens a slice of Field into the alternating key, value, key,
// value... slice that hclog.Logger's variadic args expect.
func Pairs(f []Field) []any {
	p := make([]any, 0, len(f)*2)
	for _, i := range f {
		p = append(p, i.Key, i.Value)
	}
	return p
}
