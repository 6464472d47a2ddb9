package providers

import (
	"deckpack/internal/structures"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *structures.Config {
	return &structures.Config{
		WebServer: structures.Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logger: structures.LoggerConfig{
			Level: "info",
			Mode:  0644,
			Dir:   "/tmp/logs",
		},
		Codec: structures.CodecConfig{
			Serializer:      "sqlite",
			MaxMediaBytes:   64 << 20,
			MaxArchiveBytes: 128 << 20,
			MaxEntryBytes:   64 << 20,
		},
	}
}

func TestConfigValidator_ValidConfig(t *testing.T) {
	v := NewCnfValidator(validConfig())
	assert.NoError(t, v.Validate())
}

func TestConfigValidator_EmptyHost(t *testing.T) {
	c := validConfig()
	c.WebServer.Host = ""
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_ZeroPort(t *testing.T) {
	c := validConfig()
	c.WebServer.Port = 0
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_InvalidLogLevel(t *testing.T) {
	c := validConfig()
	c.Logger.Level = "verbose"
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_UnknownSerializer(t *testing.T) {
	c := validConfig()
	c.Codec.Serializer = "protobuf"
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_JSONSerializerAccepted(t *testing.T) {
	c := validConfig()
	c.Codec.Serializer = "json"
	v := NewCnfValidator(c)
	assert.NoError(t, v.Validate())
}

func TestConfigValidator_ZeroLimit(t *testing.T) {
	c := validConfig()
	c.Codec.MaxEntryBytes = 0
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_MediaLimitAboveArchiveLimit(t *testing.T) {
	c := validConfig()
	c.Codec.MaxMediaBytes = c.Codec.MaxArchiveBytes + 1
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}
