//go:build cgo

package rograph

import "context"

func openStore(path string) (Store, error) {
	var (
		s   *KuzuStore
		err error
	)
	if path == "" {
		s, err = NewKuzuStore()
	} else {
		s, err = NewKuzuFileStore(path)
	}
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
