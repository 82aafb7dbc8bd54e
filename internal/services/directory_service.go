package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quartermasterhq/quartermaster/internal/models"
)

// DirectoryService resolves user ids to directory entries. The seat ledger
// only uses it to render human-readable audit text, but an unresolvable user
// is fatal to the operation: every audited mutation must name a real person.
type DirectoryService struct {
	db *gorm.DB
}

func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{db: db}
}

// Resolve returns the user for id or ErrUserNotFound.
func (d *DirectoryService) Resolve(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
