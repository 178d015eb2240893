package resolver

import (
	"bytes"
	"fmt"
	"reflect"
)

// Action tells Walk what to do with a visited node
type Action int

const (
	// Recurse descends into maps and slices and keeps leaves as they are
	Recurse Action = iota
	// Replace substitutes the returned value and stops descending
	Replace
)

// Visitor inspects a node. The value is used only with Replace.
type Visitor func(node any) (Action, any)

// Walk returns a transformed copy of a JSON-like tree. Containers are always
// rebuilt, so the input is never shared with or mutated through the result:
// maps of any key and value type become map[string]any, slices and arrays
// become []any, and byte slices are copied as bytes. Leaves, including blob
// handles, are carried by reference.
func Walk(node any, visit Visitor) any {
	if action, value := visit(node); action == Replace {
		return value
	}

	switch n := node.(type) {
	case map[string]any:
		if n == nil {
			return n
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = Walk(v, visit)
		}
		return out
	case []any:
		if n == nil {
			return n
		}
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = Walk(v, visit)
		}
		return out
	case []map[string]any:
		if n == nil {
			return n
		}
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = Walk(v, visit)
		}
		return out
	case []byte:
		return bytes.Clone(n)
	}
	return walkReflect(node, visit)
}

func walkReflect(node any, visit Visitor) any {
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return node
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = Walk(iter.Value().Interface(), visit)
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return node
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = Walk(v.Index(i).Interface(), visit)
		}
		return out
	}
	return node
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

// Clone returns a structural copy of a JSON-like tree
func Clone(node any) any {
	return Walk(node, func(any) (Action, any) { return Recurse, nil })
}

// Visit calls fn for every pending asset in the tree, in depth-first order,
// without descending into them
func Visit(node any, fn func(*PendingAsset)) {
	if asset, ok := AsPending(node); ok {
		fn(asset)
		return
	}

	switch n := node.(type) {
	case map[string]any:
		for _, v := range n {
			Visit(v, fn)
		}
	case []any:
		for _, v := range n {
			Visit(v, fn)
		}
	case []map[string]any:
		for _, v := range n {
			Visit(v, fn)
		}
	case []byte, string, nil:
	default:
		v := reflect.ValueOf(node)
		switch v.Kind() {
		case reflect.Map:
			iter := v.MapRange()
			for iter.Next() {
				Visit(iter.Value().Interface(), fn)
			}
		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				Visit(v.Index(i).Interface(), fn)
			}
		}
	}
}
