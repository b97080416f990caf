package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"SensorHub/internal/model"
	"SensorHub/internal/repo"
)

// addressPrefix отличает локальные BLAKE3-адреса от IPFS CID.
const addressPrefix = "b3-"

// LocalStore — контентно-адресуемое хранилище поверх BlobRepository (SQLite/Postgres).
type LocalStore struct {
	repo repo.BlobRepository
	now  func() time.Time
}

// NewLocalStore создаёт хранилище поверх репозитория.
func NewLocalStore(r repo.BlobRepository) *LocalStore {
	return &LocalStore{repo: r, now: time.Now}
}

// ContentAddress вычисляет адрес документа.
func ContentAddress(doc []byte) string {
	sum := blake3.Sum256(doc)
	return addressPrefix + hex.EncodeToString(sum[:])
}

// Store сохраняет документ; одинаковые payload дают одинаковый адрес.
func (s *LocalStore) Store(ctx context.Context, ownerID string, payload []byte) (string, error) {
	doc, err := encodeDoc(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	addr := ContentAddress(doc)
	_, err = s.repo.CreateIfAbsent(ctx, &model.Blob{
		Address: addr,
		Content: doc,
		OwnerID: ownerID,
		Name:    blobName(ownerID, s.now()),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return addr, nil
}

// Fetch возвращает исходный шифртекст по адресу.
func (s *LocalStore) Fetch(ctx context.Context, address string) ([]byte, error) {
	b, err := s.repo.GetByAddress(ctx, address)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s not found", ErrStorage, address)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// адрес пересчитывается, чтобы не отдать подменённое содержимое
	if ContentAddress(b.Content) != address {
		return nil, fmt.Errorf("%w: content does not match address %s", ErrStorage, address)
	}
	return decodeDoc(b.Content)
}
