package petite

import (
	"reflect"
	"strconv"
	"strings"
)

// resolvePath walks a dot-separated expression from the registry through
// nested stores, maps, slices and struct fields. Store reads along the way
// are tracked like any other, so a watcher on "profile.name" re-fires when
// the nested key changes.
func (i *Instance) resolvePath(path string) (any, bool) {
	segs := strings.Split(path, ".")
	cur, ok := i.lookup(segs[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segs[1:] {
		cur, ok = step(cur, seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func step(v any, seg string) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case *Store:
		return x.get(seg)
	case map[string]any:
		vv, ok := x[seg]
		return vv, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(x) {
			return nil, false
		}
		return x[idx], true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f := rv.FieldByName(seg)
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(seg))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	}
	return nil, false
}
