package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ragapi/entities"
)

const busyTimeoutMS = 5000

// DSN appends the pragmas every connection in the pool should carry.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, sep, busyTimeoutMS)
}

func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// legacy rebuild must run before AutoMigrate, which would otherwise try to
	// ALTER the blob table in place
	if err := migrateLegacyCollections(db); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("migrate legacy collections: %w", err)
	}

	if err := db.AutoMigrate(
		&entities.Collection{},
		&entities.Document{},
	); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// legacyCollection is the JSON document stored in the data column of the
// old collections(id, data) table.
type legacyCollection struct {
	Name               string            `json:"name"`
	Authors            []string          `json:"authors"`
	CreatedAt          string            `json:"created_at"`
	ExtractionStrategy map[string]string `json:"extraction_strategy"`
	EmbeddingModel     string            `json:"embedding_model"`
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseLegacyTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// migrateLegacyCollections rebuilds collections(id, data JSON) into typed
// columns. Rows are re-inserted through gorm so timestamps are stored in the
// driver's own format. A table that already has a name column is left alone.
func migrateLegacyCollections(db *gorm.DB) error {
	var tbl string
	if err := db.Raw(`SELECT name FROM sqlite_master WHERE type='table' AND name='collections'`).Scan(&tbl).Error; err != nil {
		return fmt.Errorf("check table exist: %w", err)
	}
	if tbl == "" {
		return nil
	}

	type colInfo struct {
		Cid       int
		Name      string
		Type      string
		NotNull   int
		DfltValue sql.NullString
		Pk        int
	}
	var cols []colInfo
	if err := db.Raw(`PRAGMA table_info(collections)`).Scan(&cols).Error; err != nil {
		return fmt.Errorf("table_info: %w", err)
	}

	have := map[string]bool{}
	for _, c := range cols {
		have[strings.ToLower(c.Name)] = true
	}
	if !have["data"] || have["name"] {
		return nil
	}

	now := time.Now().UTC()
	return db.Transaction(func(tx *gorm.DB) error {
		type legacyRow struct {
			ID   string
			Data sql.NullString
		}
		var rows []legacyRow
		if err := tx.Raw(`SELECT id, CAST(data AS TEXT) AS data FROM collections`).Scan(&rows).Error; err != nil {
			return fmt.Errorf("read legacy rows: %w", err)
		}

		out := make([]entities.Collection, 0, len(rows))
		for _, r := range rows {
			var lc legacyCollection
			if r.Data.Valid && r.Data.String != "" {
				if err := json.Unmarshal([]byte(r.Data.String), &lc); err != nil {
					return fmt.Errorf("decode legacy collection %s: %w", r.ID, err)
				}
			}
			created, ok := parseLegacyTime(lc.CreatedAt)
			if !ok {
				created = now
			}
			if lc.Authors == nil {
				lc.Authors = []string{}
			}
			if lc.ExtractionStrategy == nil {
				lc.ExtractionStrategy = map[string]string{}
			}
			out = append(out, entities.Collection{
				ID:                 r.ID,
				Name:               lc.Name,
				Authors:            lc.Authors,
				CreatedAt:          created,
				ExtractionStrategy: lc.ExtractionStrategy,
				EmbeddingModel:     lc.EmbeddingModel,
			})
		}

		if err := tx.Exec(`DROP TABLE collections`).Error; err != nil {
			return err
		}
		if err := tx.Migrator().CreateTable(&entities.Collection{}); err != nil {
			return fmt.Errorf("create collections: %w", err)
		}
		if len(out) == 0 {
			return nil
		}
		return tx.CreateInBatches(&out, 100).Error
	})
}
