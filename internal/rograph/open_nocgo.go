//go:build !cgo

package rograph

import "fmt"

func openStore(path string) (Store, error) {
	if path != "" {
		return nil, fmt.Errorf("rograph: persistent graph %s needs a cgo build", path)
	}
	return NewMemStore(), nil
}
