package repo

import (
	"SensorHub/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound — блоб с таким адресом отсутствует.
var ErrNotFound = errors.New("blob not found")

// BlobRepository минимальный контракт доступа к Blob.
type BlobRepository interface {
	// CreateIfAbsent пытается создать запись. Если адрес уже есть — ничего не делает.
	// Возвращает created=true если запись была создана в этой операции.
	CreateIfAbsent(ctx context.Context, b *model.Blob) (created bool, err error)
	// GetByAddress возвращает блоб по адресу или ErrNotFound.
	GetByAddress(ctx context.Context, address string) (*model.Blob, error)
}

type blobRepo struct {
	db *gorm.DB
}

// NewBlobRepository создаёт реализацию репозитория для Blob.
func NewBlobRepository(db *gorm.DB) BlobRepository {
	return &blobRepo{db: db}
}

// CreateIfAbsent создает Blob в БД, если его ещё нет.
func (r *blobRepo) CreateIfAbsent(ctx context.Context, b *model.Blob) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(b)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *blobRepo) GetByAddress(ctx context.Context, address string) (*model.Blob, error) {
	var b model.Blob
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
