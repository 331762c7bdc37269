package repo

import (
	"fmt"

	"triad-service/internal/config"
	"triad-service/internal/model"
	"triad-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Models lists every table the service migrates.
var Models = []interface{}{
	&model.User{},
	&model.UserCard{},
	&model.Match{},
}

func dialector(conf config.DatabaseConfig) (gorm.Dialector, error) {
	switch conf.Driver {
	case "", "postgres":
		return postgres.Open(conf.DSN), nil
	case "mysql":
		return mysql.Open(conf.DSN), nil
	case "sqlite":
		return sqlite.Open(conf.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}
}

// Open connects and migrates without touching the package globals.
func Open(conf config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(conf)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func InitDB() {
	var err error
	DB, err = Open(config.GlobalConfig.Database)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database",
			zap.String("driver", config.GlobalConfig.Database.Driver),
			zap.Error(err),
		)
	}
}
