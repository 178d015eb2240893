package resolver

import (
	"path/filepath"
	"reflect"
)

// Keys of the map form of a pending asset node
const (
	KeyFile    = "file"
	KeyPreview = "preview"
	KeyLocal   = "isLocal"
	KeyName    = "name"
	KeyType    = "type"
)

// PendingAsset is a chosen but not yet uploaded binary. Preview is the
// local preview locator; it identifies the asset for deduplication and is
// never sent to storage.
type PendingAsset struct {
	Blob    Blob
	Preview string
	Pending bool
}

// NewPendingAsset creates a pending asset node
func NewPendingAsset(blob Blob, preview string) *PendingAsset {
	return &PendingAsset{Blob: blob, Preview: preview, Pending: true}
}

// AsPending reports whether node has the pending asset shape: a
// *PendingAsset, or a map carrying a blob under "file", a non-empty
// "preview" and "isLocal": true.
func AsPending(node any) (*PendingAsset, bool) {
	switch n := node.(type) {
	case *PendingAsset:
		if n != nil && n.Pending && usableBlob(n.Blob) && n.Preview != "" {
			return n, true
		}
	case PendingAsset:
		if n.Pending && usableBlob(n.Blob) && n.Preview != "" {
			return &n, true
		}
	case map[string]any:
		return pendingFromMap(n)
	}
	return nil, false
}

func pendingFromMap(m map[string]any) (*PendingAsset, bool) {
	local, _ := m[KeyLocal].(bool)
	if !local {
		return nil, false
	}
	preview, _ := m[KeyPreview].(string)
	if preview == "" {
		return nil, false
	}

	var blob Blob
	switch f := m[KeyFile].(type) {
	case Blob:
		blob = f
	case []byte:
		name, _ := m[KeyName].(string)
		mimeType, _ := m[KeyType].(string)
		blob = &BytesBlob{Data: f, Filename: name, MIMEType: mimeType}
	default:
		return nil, false
	}
	if !usableBlob(blob) {
		return nil, false
	}
	return &PendingAsset{Blob: blob, Preview: preview, Pending: true}, true
}

// usableBlob rejects nil blobs, including typed nil pointers held in the
// interface
func usableBlob(b Blob) bool {
	if b == nil {
		return false
	}
	v := reflect.ValueOf(b)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return !v.IsNil()
	}
	return true
}

// BindLocalFiles returns a copy of doc in which map-form pending nodes whose
// "file" is a path string hold a FileBlob for that path instead. Relative
// paths are resolved against baseDir. A missing "preview" defaults to the
// resolved path.
func BindLocalFiles(doc any, baseDir string) any {
	return Walk(doc, func(node any) (Action, any) {
		m, ok := node.(map[string]any)
		if !ok {
			return Recurse, nil
		}
		local, _ := m[KeyLocal].(bool)
		path, isPath := m[KeyFile].(string)
		if !local || !isPath || path == "" {
			return Recurse, nil
		}

		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		mimeType, _ := m[KeyType].(string)

		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		out[KeyFile] = &FileBlob{Path: path, MIMEType: mimeType}
		if p, _ := out[KeyPreview].(string); p == "" {
			out[KeyPreview] = path
		}
		return Replace, out
	})
}
