package service

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"cryptofolio/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// mapRepoErr переводит ошибки репозитория в ошибки уровня сервиса,
// чтобы handlers не зависели от пакета repository
func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return ErrCredentialNotFound
	}
	return err
}
