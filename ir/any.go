package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// FromAny converts decoded Go data (as produced by encoding/json, yaml
// decoders or expression evaluation) into a Value.
func FromAny(x any) (*Value, error) {
	return fromAny(x, "$")
}

func fromAny(x any, path string) (*Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case *Value:
		if v == nil {
			return Null(), nil
		}
		return v, nil
	case bool:
		return FromBool(v), nil
	case string:
		return FromString(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %q at %s: %w", ErrUnsupported, v, path, err)
		}
		return fromFloat(f, path)
	case float64:
		return fromFloat(v, path)
	case float32:
		return fromFloat(float64(v), path)
	case int:
		return FromNumber(float64(v)), nil
	case int8:
		return FromNumber(float64(v)), nil
	case int16:
		return FromNumber(float64(v)), nil
	case int32:
		return FromNumber(float64(v)), nil
	case int64:
		return FromNumber(float64(v)), nil
	case uint:
		return FromNumber(float64(v)), nil
	case uint8:
		return FromNumber(float64(v)), nil
	case uint16:
		return FromNumber(float64(v)), nil
	case uint32:
		return FromNumber(float64(v)), nil
	case uint64:
		return FromNumber(float64(v)), nil
	case []any:
		res := &Value{Type: ArrayType, Values: make([]*Value, len(v))}
		for i := range v {
			e, err := fromAny(v[i], IndexPath(path, i))
			if err != nil {
				return nil, err
			}
			res.Values[i] = e
		}
		return res, nil
	case map[string]any:
		res := &Value{Type: ObjectType, Fields: make(map[string]*Value, len(v))}
		for k, fv := range v {
			f, err := fromAny(fv, FieldPath(path, k))
			if err != nil {
				return nil, err
			}
			res.Fields[k] = f
		}
		return res, nil
	}
	return fromReflect(reflect.ValueOf(x), path)
}

func fromFloat(f float64, path string) (*Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: non-finite number at %s", ErrUnsupported, path)
	}
	return FromNumber(f), nil
}

func fromReflect(rv reflect.Value, path string) (*Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		res := &Value{Type: ArrayType, Values: make([]*Value, rv.Len())}
		for i := range rv.Len() {
			e, err := fromAny(rv.Index(i).Interface(), IndexPath(path, i))
			if err != nil {
				return nil, err
			}
			res.Values[i] = e
		}
		return res, nil
	case reflect.Map:
		res := &Value{Type: ObjectType, Fields: make(map[string]*Value, rv.Len())}
		iter := rv.MapRange()
		for iter.Next() {
			var key string
			switch k := iter.Key().Interface().(type) {
			case string:
				key = k
			case fmt.Stringer:
				key = k.String()
			default:
				kv := iter.Key()
				if kv.Kind() != reflect.String {
					return nil, fmt.Errorf("%w: key %v of type %T at %s", ErrUnsupported, k, k, path)
				}
				key = kv.String()
			}
			f, err := fromAny(iter.Value().Interface(), FieldPath(path, key))
			if err != nil {
				return nil, err
			}
			res.Fields[key] = f
		}
		return res, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromAny(rv.Elem().Interface(), path)
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	return nil, fmt.Errorf("%w: %s at %s", ErrUnsupported, rv.Type(), path)
}

// ToAny converts v into plain Go data: nil, bool, float64, string,
// []any and map[string]any.
func ToAny(v *Value) any {
	switch v.Type {
	case BoolType:
		return v.Bool
	case NumberType:
		return v.Number
	case StringType:
		return v.String
	case ArrayType:
		res := make([]any, len(v.Values))
		for i, e := range v.Values {
			res[i] = ToAny(e)
		}
		return res
	case ObjectType:
		res := make(map[string]any, len(v.Fields))
		for k, f := range v.Fields {
			res[k] = ToAny(f)
		}
		return res
	default:
		return nil
	}
}
