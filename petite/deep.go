package petite

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// maxDeepDepth bounds both the registration walk and fingerprinting so a
// cyclic or degenerate value cannot hang a watcher.
const maxDeepDepth = 32

// deepSubscribe is the one-time recursive wrap a deep watcher performs at
// registration: every key of every nested Store reachable from v gets the
// watcher as a subscriber. Stores that only become reachable later are not
// picked up; replace the top-level value (or re-register) for that.
func (w *Watcher) deepSubscribe(v any) {
	seen := make(map[*Store]struct{})
	w.deepWalk(v, seen, 0)
}

func (w *Watcher) deepWalk(v any, seen map[*Store]struct{}, depth int) {
	if v == nil || depth > maxDeepDepth {
		return
	}
	switch x := v.(type) {
	case *Store:
		if _, ok := seen[x]; ok {
			return
		}
		seen[x] = struct{}{}
		for key, set := range x.subs {
			set.Add(w)
			w.deepEdges = append(w.deepEdges, set)
			w.deepWalk(x.values[key], seen, depth+1)
		}
	case map[string]any:
		for _, vv := range x {
			w.deepWalk(vv, seen, depth+1)
		}
	case []any:
		for _, vv := range x {
			w.deepWalk(vv, seen, depth+1)
		}
	default:
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if rv.Index(i).CanInterface() {
					w.deepWalk(rv.Index(i).Interface(), seen, depth+1)
				}
			}
		case reflect.Map:
			iter := rv.MapRange()
			for iter.Next() {
				if iter.Value().CanInterface() {
					w.deepWalk(iter.Value().Interface(), seen, depth+1)
				}
			}
		case reflect.Struct:
			for i := 0; i < rv.NumField(); i++ {
				if rv.Field(i).CanInterface() {
					w.deepWalk(rv.Field(i).Interface(), seen, depth+1)
				}
			}
		}
	}
}

// fingerprint hashes the structure reachable from v so a deep watcher can
// tell that something below the top-level reference changed even though
// identity did not.
func fingerprint(v any) uint64 {
	d := xxhash.New()
	hashValue(d, v, 0)
	return d.Sum64()
}

func hashValue(d *xxhash.Digest, v any, depth int) {
	if depth > maxDeepDepth {
		_, _ = d.WriteString("depth;")
		return
	}
	switch x := v.(type) {
	case nil:
		_, _ = d.WriteString("nil;")
	case *Store:
		_, _ = d.WriteString("store{")
		for _, key := range x.Keys() {
			_, _ = d.WriteString(key)
			_, _ = d.WriteString(":")
			hashValue(d, x.values[key], depth+1)
		}
		_, _ = d.WriteString("}")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, _ = d.WriteString("map{")
		for _, k := range keys {
			_, _ = d.WriteString(k)
			_, _ = d.WriteString(":")
			hashValue(d, x[k], depth+1)
		}
		_, _ = d.WriteString("}")
	case []any:
		_, _ = d.WriteString("list[")
		for _, vv := range x {
			hashValue(d, vv, depth+1)
		}
		_, _ = d.WriteString("]")
	default:
		// fmt prints map contents in sorted key order, so this stays
		// deterministic for plain values
		fmt.Fprintf(d, "%T:%v;", v, v)
	}
}
