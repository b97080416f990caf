package model

import "time"

// Blob — серверная модель зашифрованного содержимого, адресуемого по хешу.
type Blob struct {
	Address string `gorm:"primaryKey"`

	// Content — документ {"cypher": "<hex>"}, из которого вычислен адрес.
	Content []byte `gorm:"not null"`

	// Метаданные не входят в адрес и видны хранилищу.
	OwnerID string `gorm:"not null;index"`
	Name    string `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
