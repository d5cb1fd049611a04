package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a connected GORM DB instance. URLs prefixed with sqlite:// use
// the embedded sqlite driver; anything else is treated as a MySQL DSN.
func New(databaseURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if dsn, ok := strings.CutPrefix(databaseURL, "sqlite://"); ok {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = mysql.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}
