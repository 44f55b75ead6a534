package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.NotNil(cfg.Session)
	assert.NotNil(cfg.Channel)
	assert.NotNil(cfg.Instrumentation)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	cfg.SeedFile = "bar"
	cfg.DBPath = "/opt/data"

	assert.Equal("/foo/bar", cfg.SeedPath())
	assert.Equal("/opt/data", cfg.DBDir())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())

	cfg.Session.PingInterval = -10 * time.Second
	assert.Error(t, cfg.ValidateBasic())
}

func TestBaseConfigValidateBasic(t *testing.T) {
	cfg := TestBaseConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with log format
	cfg.LogFormat = "invalid"
	assert.Error(t, cfg.ValidateBasic())
}

func TestSessionConfigValidateBasic(t *testing.T) {
	cfg := TestSessionConfig()
	assert.NoError(t, cfg.ValidateBasic())

	fieldsToTest := []string{"PingInterval", "HandshakeTimeout"}
	for _, fieldName := range fieldsToTest {
		reflect.ValueOf(cfg).Elem().FieldByName(fieldName).SetInt(-1)
		assert.Error(t, cfg.ValidateBasic())
		reflect.ValueOf(cfg).Elem().FieldByName(fieldName).SetInt(0)
	}

	cfg.WriteQueueSize = 0
	assert.Error(t, cfg.ValidateBasic())
}

func TestChannelConfigValidateBasic(t *testing.T) {
	cfg := TestChannelConfig()
	assert.NoError(t, cfg.ValidateBasic())
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with maximum open connections
	cfg.MaxOpenConnections = -1
	assert.Error(t, cfg.ValidateBasic())
}
