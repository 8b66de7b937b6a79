package conn

import (
	"fmt"
	"net/url"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresOption defines connection options for PostgreSQL.
type PostgresOption struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Config   *gorm.Config
}

func (opt *PostgresOption) resolve() {
	if opt.Host == "" {
		opt.Host = "localhost"
	}
	if opt.Port == 0 {
		opt.Port = 5432
	}
	if opt.SSLMode == "" {
		opt.SSLMode = "disable"
	}
	if opt.Config == nil {
		opt.Config = &gorm.Config{}
	}
}

// NewPostgres opens a PostgreSQL connection pool through gorm.
func NewPostgres(opt PostgresOption) (*gorm.DB, error) {
	opt.resolve()
	db, err := gorm.Open(postgres.Open(opt.dsn()), opt.Config)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return db, nil
}

// ClosePostgres closes the underlying connection pool.
func ClosePostgres(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PostgresOption) dsn() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", opt.Host, opt.Port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	u.RawQuery = url.Values{"sslmode": {opt.SSLMode}}.Encode()
	return u.String()
}
