package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/thunder/internal/models"
)

// ErrInvalidPath is returned for empty paths or paths that walk through a
// non-object value.
var ErrInvalidPath = errors.New("invalid document path")

// Get decodes the value at a dotted path (e.g. "accounts.7656.meta") into
// out. It reports false when nothing is stored there.
func (h *Handle) Get(path string, out any) (bool, error) {
	keys, err := splitPath(path)
	if err != nil {
		return false, err
	}

	h.mu.RLock()
	tree, err := toTree(h.doc)
	h.mu.RUnlock()
	if err != nil {
		return false, err
	}

	var cur any = tree
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return false, nil
		}
		if cur, ok = m[k]; !ok {
			return false, nil
		}
	}

	b, err := json.Marshal(cur)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

// Set stores value at a dotted path, creating intermediate objects, and
// persists the document. The result must still decode as a Document.
func (h *Handle) Set(path string, value any) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return h.patchTree(func(tree map[string]any) error {
		parent, err := walk(tree, keys[:len(keys)-1], true)
		if err != nil {
			return fmt.Errorf("%w: %s", err, path)
		}
		parent[keys[len(keys)-1]] = v
		return nil
	})
}

// Delete removes the value at a dotted path and persists the document.
// Deleting a missing path is a no-op.
func (h *Handle) Delete(path string) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}

	return h.patchTree(func(tree map[string]any) error {
		parent, err := walk(tree, keys[:len(keys)-1], false)
		if err != nil || parent == nil {
			return nil
		}
		delete(parent, keys[len(keys)-1])
		return nil
	})
}

func (h *Handle) patchTree(fn func(tree map[string]any) error) error {
	return h.Update(func(doc *models.Document) error {
		tree, err := toTree(doc)
		if err != nil {
			return err
		}
		if err := fn(tree); err != nil {
			return err
		}

		b, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		var next models.Document
		if err := json.Unmarshal(b, &next); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		if next.Accounts == nil {
			next.Accounts = map[string]models.Account{}
		}
		*doc = next
		return nil
	})
}

func walk(tree map[string]any, keys []string, create bool) (map[string]any, error) {
	cur := tree
	for _, k := range keys {
		next, ok := cur[k]
		if !ok || next == nil {
			if !create {
				return nil, nil
			}
			m := map[string]any{}
			cur[k] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, ErrInvalidPath
		}
		cur = m
	}
	return cur, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	keys := strings.Split(path, ".")
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return keys, nil
}
