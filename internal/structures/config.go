package structures

import (
	"net/http"
	"time"
)

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CodecConfig struct {
	Serializer        string `yaml:"serializer" validate:"required|in:sqlite,json"`
	MaxMediaBytes     int64  `yaml:"maxMediaBytes" validate:"required|min:1"`
	MaxArchiveBytes   int64  `yaml:"maxArchiveBytes" validate:"required|min:1"`
	MaxEntryBytes     int64  `yaml:"maxEntryBytes" validate:"required|min:1"`
	TempDir           string `yaml:"tempDir"`
	CleanImportedHTML bool   `yaml:"cleanImportedHtml"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	WebServer Server        `yaml:"webServer"`
	Logger    LoggerConfig  `yaml:"logger"`
	Codec     CodecConfig   `yaml:"codec"`
	Cache     CacheConfig   `yaml:"cache"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
	Command    string
	Input      string
	Output     string
	DeckName   string
}

type Route struct {
	Method  string
	Url     string
	Handler http.Handler
}
