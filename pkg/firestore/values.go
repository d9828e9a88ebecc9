package firestore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Value is the discriminated union Firestore uses for every field. Exactly one member is set.
type Value struct {
	StringValue    *string     `json:"stringValue,omitempty"`
	IntegerValue   *IntString  `json:"integerValue,omitempty"`
	DoubleValue    *float64    `json:"doubleValue,omitempty"`
	BooleanValue   *bool       `json:"booleanValue,omitempty"`
	TimestampValue *string     `json:"timestampValue,omitempty"`
	NullValue      *string     `json:"nullValue,omitempty"`
	ArrayValue     *ArrayValue `json:"arrayValue,omitempty"`
	MapValue       *MapValue   `json:"mapValue,omitempty"`
}

// ArrayValue wraps repeated values.
type ArrayValue struct {
	Values []Value `json:"values,omitempty"`
}

// MapValue wraps nested fields.
type MapValue struct {
	Fields map[string]Value `json:"fields,omitempty"`
}

// IntString is an int64 that the REST API transmits as a JSON string. Numbers are accepted
// on decode as well.
type IntString int64

// MarshalJSON encodes the integer as a quoted string.
func (i IntString) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(i), 10))
}

// UnmarshalJSON accepts both "42" and 42.
func (i *IntString) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integerValue %s: %w", string(data), err)
	}
	*i = IntString(parsed)
	return nil
}

// Document is a Firestore document resource.
type Document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]Value `json:"fields,omitempty"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

// ID returns the last path segment of the document name.
func (d Document) ID() string {
	if idx := strings.LastIndex(d.Name, "/"); idx >= 0 {
		return d.Name[idx+1:]
	}
	return d.Name
}

// EncodeFields converts a native map into typed Firestore fields.
func EncodeFields(data map[string]any) map[string]Value {
	fields := make(map[string]Value, len(data))
	for key, value := range data {
		fields[key] = EncodeValue(value)
	}
	return fields
}

// EncodeValue converts a single native value.
func EncodeValue(value any) Value {
	switch v := value.(type) {
	case nil:
		null := "NULL_VALUE"
		return Value{NullValue: &null}
	case string:
		return Value{StringValue: &v}
	case bool:
		return Value{BooleanValue: &v}
	case int:
		i := IntString(v)
		return Value{IntegerValue: &i}
	case int32:
		i := IntString(v)
		return Value{IntegerValue: &i}
	case int64:
		i := IntString(v)
		return Value{IntegerValue: &i}
	case float32:
		f := float64(v)
		return Value{DoubleValue: &f}
	case float64:
		return Value{DoubleValue: &v}
	case time.Time:
		ts := v.UTC().Format(time.RFC3339Nano)
		return Value{TimestampValue: &ts}
	case map[string]any:
		return Value{MapValue: &MapValue{Fields: EncodeFields(v)}}
	case []any:
		values := make([]Value, 0, len(v))
		for _, item := range v {
			values = append(values, EncodeValue(item))
		}
		return Value{ArrayValue: &ArrayValue{Values: values}}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			values = append(values, EncodeValue(rv.Index(i).Interface()))
		}
		return Value{ArrayValue: &ArrayValue{Values: values}}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			nested := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				nested[iter.Key().String()] = iter.Value().Interface()
			}
			return Value{MapValue: &MapValue{Fields: EncodeFields(nested)}}
		}
	}

	s := fmt.Sprint(value)
	return Value{StringValue: &s}
}

// DecodeFields converts typed fields back into a native map, inferring each type from the
// variant key that is present.
func DecodeFields(fields map[string]Value) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = DecodeValue(value)
	}
	return out
}

// DecodeValue converts a single typed value.
func DecodeValue(v Value) any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntegerValue != nil:
		return int64(*v.IntegerValue)
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.BooleanValue != nil:
		return *v.BooleanValue
	case v.TimestampValue != nil:
		if ts, err := time.Parse(time.RFC3339Nano, *v.TimestampValue); err == nil {
			return ts
		}
		return *v.TimestampValue
	case v.MapValue != nil:
		return DecodeFields(v.MapValue.Fields)
	case v.ArrayValue != nil:
		items := make([]any, 0, len(v.ArrayValue.Values))
		for _, item := range v.ArrayValue.Values {
			items = append(items, DecodeValue(item))
		}
		return items
	default:
		return nil
	}
}
