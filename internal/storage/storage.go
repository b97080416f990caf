// Package storage сохраняет зашифрованные показания в контентно-адресуемом хранилище.
package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStorage — любая неудача сохранения или чтения.
	ErrStorage = errors.New("storage failed")
	// ErrUnauthorized — провайдер отклонил учётные данные. Всегда обёрнут в ErrStorage.
	ErrUnauthorized = errors.New("storage credential rejected")
)

// BlobStore сохраняет шифртекст и возвращает его контентный адрес.
type BlobStore interface {
	Store(ctx context.Context, ownerID string, payload []byte) (string, error)
	Fetch(ctx context.Context, address string) ([]byte, error)
}

// cypherDoc — документ, который адресуется по содержимому. Метаданные в него не входят.
type cypherDoc struct {
	Cypher string `json:"cypher"`
}

func encodeDoc(payload []byte) ([]byte, error) {
	return json.Marshal(cypherDoc{Cypher: hex.EncodeToString(payload)})
}

func decodeDoc(data []byte) ([]byte, error) {
	var doc cypherDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding document: %v", ErrStorage, err)
	}
	b, err := hex.DecodeString(doc.Cypher)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding cypher: %v", ErrStorage, err)
	}
	return b, nil
}

// blobName — имя записи в метаданных: SensorData-<owner>-<unix ms>.
func blobName(ownerID string, at time.Time) string {
	return fmt.Sprintf("SensorData-%s-%d", ownerID, at.UnixMilli())
}
