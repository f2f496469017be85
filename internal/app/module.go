package app

import (
	"github.com/jessenaser/duobreak/internal/duo/outbound/vaultfile"
	"github.com/jessenaser/duobreak/internal/duo/usecase"
)

// storeOpener adapts the concrete vault opener to the usecase contract. A nil
// *Store must come back as a nil interface, hence the explicit error checks.
type storeOpener struct {
	opener *vaultfile.Opener
}

func (s storeOpener) Open(path, password string) (usecase.VaultStore, error) {
	st, err := s.opener.Open(path, password)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s storeOpener) Create(path, password string) (usecase.VaultStore, error) {
	st, err := s.opener.Create(path, password)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s storeOpener) OpenOrCreate(path, password string) (usecase.VaultStore, error) {
	st, err := s.opener.OpenOrCreate(path, password)
	if err != nil {
		return nil, err
	}
	return st, nil
}
