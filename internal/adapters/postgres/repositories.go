package postgres

import (
	"gorm.io/gorm"

	"github.com/PykeW/update-all/internal/ports"
)

type Repositories struct {
	Software  ports.SoftwareRepository
	Downloads ports.DownloadEventRepository
	Users     ports.UserRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Software:  &softwareRepository{db: db},
		Downloads: &downloadEventRepository{db: db},
		Users:     &userRepository{db: db},
	}
}
