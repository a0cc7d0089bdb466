// Package json decodes song-metadata documents and activity-log streams into
// flat records.
package json

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"sparkify/internal/records"
)

// Format declares how a file's bytes are laid out.
type Format int

const (
	// FormatDocument is a single JSON value: one object, an array of objects,
	// or an envelope object holding an array of objects. Objects may follow
	// the root value.
	FormatDocument Format = iota

	// FormatLines is newline-delimited JSON, one object per line.
	FormatLines
)

func (f Format) String() string {
	switch f {
	case FormatDocument:
		return "document"
	case FormatLines:
		return "lines"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// arrayJoinSeparator flattens []string values into a scalar.
const arrayJoinSeparator = ","

// Records returns the records of r in input order.
//
// The sequence is lazy: nothing is read until the caller ranges over it.
//
// Errors:
//   - FormatDocument: a decode error yields a *records.MalformedRecordError and
//     ends the sequence.
//   - FormatLines: a bad line yields a *records.MalformedRecordError for that
//     line; ranging continues with the next line.
//   - Read errors from r are yielded as-is and end the sequence.
func Records(r io.Reader, format Format) iter.Seq2[records.Record, error] {
	if format == FormatLines {
		return lineRecords(r)
	}
	return documentRecords(r)
}

func documentRecords(r io.Reader) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		dec := json.NewDecoder(r)
		dec.UseNumber()

		index := 0
		emit := func(obj map[string]any) bool {
			index++
			return yield(records.Record{Index: index, Fields: flatten(obj)}, nil)
		}

		for {
			var raw any
			if err := dec.Decode(&raw); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(records.Record{}, &records.MalformedRecordError{Index: index + 1, Err: err})
				return
			}

			switch v := raw.(type) {
			case nil:
				continue
			case []any:
				if !emitArray(v, index, yield, emit) {
					return
				}
			case map[string]any:
				if arr, ok := envelopeArray(v); ok {
					if !emitArray(arr, index, yield, emit) {
						return
					}
					continue
				}
				if !emit(v) {
					return
				}
			default:
				yield(records.Record{}, &records.MalformedRecordError{
					Index: index + 1,
					Err:   fmt.Errorf("json: unsupported root value %T (want object or array)", raw),
				})
				return
			}
		}
	}
}

// emitArray yields each object element; null elements are skipped.
func emitArray(
	arr []any,
	index int,
	yield func(records.Record, error) bool,
	emit func(map[string]any) bool,
) bool {
	for _, el := range arr {
		if el == nil {
			continue
		}
		obj, ok := el.(map[string]any)
		if !ok {
			yield(records.Record{}, &records.MalformedRecordError{
				Index: index + 1,
				Err:   fmt.Errorf("json: array element not an object (got %T)", el),
			})
			return false
		}
		if !emit(obj) {
			return false
		}
		index++
	}
	return true
}

// envelopeArray returns the array-of-objects field of an envelope object.
//
// When several fields qualify, the lexicographically smallest key wins so the
// choice does not depend on map iteration order.
func envelopeArray(obj map[string]any) ([]any, bool) {
	var keys []string
	for k, v := range obj {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		if _, isObj := arr[0].(map[string]any); isObj {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)
	return obj[keys[0]].([]any), true
}

func lineRecords(r io.Reader) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		br := bufio.NewReader(r)
		line := 0

		for {
			b, readErr := br.ReadBytes('\n')
			if len(b) > 0 {
				line++
				trimmed := bytes.TrimSpace(b)
				if len(trimmed) > 0 {
					obj, err := decodeLine(trimmed)
					if err != nil {
						if !yield(records.Record{}, &records.MalformedRecordError{Index: line, Err: err}) {
							return
						}
					} else if !yield(records.Record{Index: line, Fields: flatten(obj)}, nil) {
						return
					}
				}
			}
			if readErr != nil {
				if !errors.Is(readErr, io.EOF) {
					yield(records.Record{}, fmt.Errorf("json: read line %d: %w", line+1, readErr))
				}
				return
			}
		}
	}
}

// decodeLine decodes exactly one JSON object from a single line.
func decodeLine(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("json: line is not an object")
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("json: unexpected data after object")
	}
	return obj, nil
}

// flatten converts a decoded object into scalar fields.
//
// Nested objects become dotted keys ("a.b"). Arrays of strings are joined;
// any other array is kept as its JSON text.
func flatten(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	flattenInto(out, "", obj)
	return out
}

func flattenInto(out map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = normalizeScalar(v)
	}
}

func normalizeScalar(v any) any {
	switch t := v.(type) {
	case nil, string, bool:
		return t
	case json.Number:
		return numberValue(t)
	case float64:
		return t
	case []any:
		return joinArray(t)
	default:
		return fmt.Sprint(t)
	}
}

// numberValue keeps integral source text as int64 and everything else as
// float64. Integers that overflow int64 fall back to float64.
func numberValue(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return f
}

func joinArray(arr []any) any {
	if len(arr) == 0 {
		return ""
	}
	ss := make([]string, 0, len(arr))
	for _, it := range arr {
		if it == nil {
			continue
		}
		s, ok := it.(string)
		if !ok {
			b, err := json.Marshal(arr)
			if err != nil {
				return fmt.Sprint(arr)
			}
			return string(b)
		}
		ss = append(ss, s)
	}
	return strings.Join(ss, arrayJoinSeparator)
}
