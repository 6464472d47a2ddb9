package providers

import (
	"deckpack/internal/structures"
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultMaxMediaBytes   = 64 << 20
	defaultMaxArchiveBytes = 128 << 20
	defaultMaxEntryBytes   = 64 << 20
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.SetDefault("codec.serializer", "sqlite")
	v.SetDefault("codec.maxMediaBytes", defaultMaxMediaBytes)
	v.SetDefault("codec.maxArchiveBytes", defaultMaxArchiveBytes)
	v.SetDefault("codec.maxEntryBytes", defaultMaxEntryBytes)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.BindEnv("logger.level", "DECKPACK_LOG_LEVEL")
	v.BindEnv("codec.serializer", "DECKPACK_SERIALIZER")
	v.BindEnv("codec.maxMediaBytes", "DECKPACK_MAX_MEDIA_BYTES")
	v.BindEnv("codec.maxArchiveBytes", "DECKPACK_MAX_ARCHIVE_BYTES")
	v.BindEnv("cache.enabled", "DECKPACK_CACHE_ENABLED")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "deckpack"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
