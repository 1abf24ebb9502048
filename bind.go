package fluentlite

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"
)

// bindValue normalizes a Go value into one the driver can bind: nil,
// int64, float64, bool, string, []byte or time.Time. Named scalar types
// are resolved through reflection. Unsupported kinds return an error
// instead of panicking inside the driver.
func bindValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string, time.Time:
		return t, nil
	case []byte:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return uintToInt64(uint64(t))
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return uintToInt64(t)
	case float32:
		return float64(t), nil
	case driver.Valuer:
		val, err := t.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve driver value: %w", err)
		}
		return val, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return bindValue(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintToInt64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
	}

	return nil, fmt.Errorf("cannot bind value of type %T", v)
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("unsigned value %d overflows a database integer", u)
	}
	return int64(u), nil
}

// bindArgs normalizes a parameter list, reporting the position of the
// first unbindable value.
func bindArgs(args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	bound := make([]any, len(args))
	for i, arg := range args {
		v, err := bindValue(arg)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		bound[i] = v
	}
	return bound, nil
}
