package controllerImp

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var appStart = time.Now()

type HealthCtrl struct {
	db        *gorm.DB
	vectorDir string
}

func NewHealthCtrl(db *gorm.DB, vectorDir string) *HealthCtrl {
	return &HealthCtrl{db: db, vectorDir: vectorDir}
}

type check struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}

func (h *HealthCtrl) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
	defer cancel()

	db := h.checkDB(ctx)
	vectors := h.checkVectorDir()

	allOK := db.OK && vectors.OK
	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":     map[string]any{"ok": allOK},
		"uptime_sec": int(time.Since(appStart).Seconds()),
		"checks": map[string]any{
			"database": db,
			"vectors":  vectors,
		},
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	return c.JSON(status, resp)
}

func (h *HealthCtrl) checkDB(ctx context.Context) check {
	if h.db == nil {
		return check{Err: "gorm db is nil"}
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return check{Err: "db.DB(): " + err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return check{Err: "ping: " + err.Error()}
	}
	return check{OK: true}
}

// checkVectorDir confirms the index directory exists and accepts writes.
func (h *HealthCtrl) checkVectorDir() check {
	fi, err := os.Stat(h.vectorDir)
	if err != nil {
		return check{Err: "stat: " + err.Error()}
	}
	if !fi.IsDir() {
		return check{Err: h.vectorDir + " is not a directory"}
	}
	f, err := os.CreateTemp(h.vectorDir, ".health-*")
	if err != nil {
		return check{Err: "write: " + err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return check{OK: true}
}
