package archive

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// Direction marks which way a frame crossed the connection.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Record is one archived frame.
type Record struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	At            time.Time `gorm:"index"`
	Direction     Direction `gorm:"size:3"`
	Command       string    `gorm:"size:16;index"`
	Destination   string    `gorm:"size:255"`
	Subscription  string    `gorm:"size:64"`
	CorrelationID string    `gorm:"size:64;index"`
	Body          []byte
}

// TableName keeps the table name stable across gorm naming strategies.
func (Record) TableName() string { return "frame_archive" }

// Store persists archive records.
type Store interface {
	Save(record *Record) error
	Close() error
}

// PGOption defines connection options for the PostgreSQL store.
type PGOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// PGStore persists records through a PostgreSQL connection pool.
type PGStore struct {
	opt PGOption
	db  *gorm.DB
}

// NewPGStore opens the pool and migrates the archive table.
func NewPGStore(option PGOption) (*PGStore, error) {
	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(option.dsn()), config)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &PGStore{opt: option, db: db}, nil
}

// Save inserts one record.
func (s *PGStore) Save(record *Record) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.Create(record).Error
}

// Close closes the underlying connection pool.
func (s *PGStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt PGOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
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

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String()
}
