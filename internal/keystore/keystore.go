// Package keystore владеет подписывающей идентичностью сервера: загружает её из
// зашифрованного паролем JSON-файла или создаёт новую при первом запуске.
package keystore

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ErrAuthentication — неверный пароль или повреждённый файл ключа.
var ErrAuthentication = errors.New("keystore authentication failed")

// Identity — приватный ключ и производный от него адрес.
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Address возвращает публичный адрес идентичности.
func (id *Identity) Address() common.Address { return id.address }

// PublicKey возвращает публичный ключ.
func (id *Identity) PublicKey() *ecdsa.PublicKey { return &id.key.PublicKey }

// Sign подписывает 32-байтовый дайджест (формат [R || S || V]).
func (id *Identity) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, id.key)
}

type options struct {
	scryptN int
	scryptP int
}

// Option настраивает Obtain.
type Option func(*options)

// WithScrypt задаёт параметры scrypt для создаваемого файла. В тестах удобно
// использовать keystore.LightScryptN / LightScryptP.
func WithScrypt(n, p int) Option {
	return func(o *options) {
		o.scryptN = n
		o.scryptP = p
	}
}

// Obtain загружает идентичность из path или создаёт новую и сохраняет её.
// Запись на диск происходит только при создании.
func Obtain(path, password string, opts ...Option) (*Identity, error) {
	if path == "" {
		return nil, errors.New("empty keystore path")
	}
	o := options{scryptN: keystore.StandardScryptN, scryptP: keystore.StandardScryptP}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return load(data, password)
	case errors.Is(err, os.ErrNotExist):
		return create(path, password, o)
	default:
		return nil, fmt.Errorf("reading keystore %s: %w", path, err)
	}
}

func load(data []byte, password string) (*Identity, error) {
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return &Identity{key: key.PrivateKey, address: key.Address}, nil
}

func create(path, password string, o options) (*Identity, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
		PrivateKey: pk,
	}
	blob, err := keystore.EncryptKey(key, password, o.scryptN, o.scryptP)
	if err != nil {
		return nil, fmt.Errorf("encrypting key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	// O_EXCL: не перезаписываем файл, если он появился между чтением и записью
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating keystore %s: %w", path, err)
	}
	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing keystore %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Identity{key: pk, address: key.Address}, nil
}
