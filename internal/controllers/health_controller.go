package controllers

import (
	"deckpack/internal/deck"
	"deckpack/internal/structures"
	"fmt"
	json "github.com/goccy/go-json"
	"net/http"
	"os"
	"time"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

type HealthController struct {
	conf      *structures.Config
	startTime time.Time
	probeDir  func(dir string) error
}

type codecHealth struct {
	Serializer      string `json:"serializer"`
	MaxMediaBytes   int64  `json:"max_media_bytes"`
	MaxArchiveBytes int64  `json:"max_archive_bytes"`
	MaxEntryBytes   int64  `json:"max_entry_bytes"`
	ExportBodyLimit int64  `json:"export_body_limit"`
	ImportBodyLimit int64  `json:"import_body_limit"`
	TempDir         string `json:"temp_dir,omitempty"`
	TempDirWritable *bool  `json:"temp_dir_writable,omitempty"`
	TempDirError    string `json:"temp_dir_error,omitempty"`
}

type cacheHealth struct {
	Enabled    bool `json:"enabled"`
	SizeMB     int  `json:"size_mb,omitempty"`
	TTLSeconds int  `json:"ttl_seconds,omitempty"`
}

type healthResponse struct {
	Status        string      `json:"status"`
	App           string      `json:"app"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	Codec         codecHealth `json:"codec"`
	Cache         cacheHealth `json:"cache"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        healthOK,
		App:           hc.conf.AppName,
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Codec:         hc.codecHealth(),
		Cache:         hc.cacheHealth(),
	}
	status := http.StatusOK
	if resp.Codec.TempDirWritable != nil && !*resp.Codec.TempDirWritable {
		resp.Status = healthDegraded
		status = http.StatusServiceUnavailable
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, gson)
}

// codecHealth reports the effective limits. The SQLite serializer stages
// collections on disk, so its temp dir is checked for writability.
func (hc *HealthController) codecHealth() codecHealth {
	c := hc.conf.Codec
	serializer := c.Serializer
	if serializer == "" {
		serializer = deck.SerializerSQLite
	}
	h := codecHealth{
		Serializer:      serializer,
		MaxMediaBytes:   c.MaxMediaBytes,
		MaxArchiveBytes: c.MaxArchiveBytes,
		MaxEntryBytes:   c.MaxEntryBytes,
		ExportBodyLimit: exportBodyLimit(hc.conf),
		ImportBodyLimit: c.MaxArchiveBytes,
	}
	if serializer != deck.SerializerSQLite {
		return h
	}

	h.TempDir = c.TempDir
	if h.TempDir == "" {
		h.TempDir = os.TempDir()
	}
	writable := true
	if err := hc.probeDir(h.TempDir); err != nil {
		writable = false
		h.TempDirError = err.Error()
	}
	h.TempDirWritable = &writable
	return h
}

func (hc *HealthController) cacheHealth() cacheHealth {
	c := hc.conf.Cache
	if !c.Enabled || c.Size <= 0 {
		return cacheHealth{}
	}
	return cacheHealth{
		Enabled:    true,
		SizeMB:     c.Size,
		TTLSeconds: max(int(c.TTL.Seconds()), 1),
	}
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, "deckpack-health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(conf *structures.Config) *HealthController {
	return &HealthController{
		conf:      conf,
		startTime: time.Now(),
		probeDir:  probeWritable,
	}
}
