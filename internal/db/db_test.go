package db

import (
	"strings"
	"testing"

	"github.com/example/tourdesk/internal/config"
	"github.com/example/tourdesk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "no password",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "tourdesk"},
			want: "root@tcp(127.0.0.1:3306)/tourdesk?parseTime=true&charset=utf8mb4",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3307, User: "tourdesk", Password: "s3cret", Database: "tourdesk_prod"},
			want: "tourdesk:s3cret@tcp(db.internal:3307)/tourdesk_prod?parseTime=true&charset=utf8mb4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost", Port: 3306, User: "root", Database: "t"})
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestAutoMigrate_AllModels(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, m := range []string{"sessions", "teams", "tours", "tour_queue_entries", "users"} {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table %q missing after migrate", m)
		}
	}

	// Duplicate enqueue protection lives in the schema.
	e1 := models.TourQueueEntry{TourID: "tour-1", Priority: 100, Status: models.QueueStatusWaiting}
	if err := gdb.Create(&e1).Error; err != nil {
		t.Fatalf("create entry: %v", err)
	}
	e2 := models.TourQueueEntry{TourID: "tour-1", Priority: 100, Status: models.QueueStatusWaiting}
	if err := gdb.Create(&e2).Error; err == nil {
		t.Error("expected unique-index violation for duplicate tour_id")
	}
}
