package configutil

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/validator.v2"
)

const (
	baseConfig = `
listen_address: localhost:4385
queue_size: 1024
relay:
  conn:
    ping_interval: 5s
    limits:
      text: 64KB
servers:
    - relay-sjc1:8090
    - relay-backup-sjc1:8010
`

	invalidConfig = `
listen_address:
queue_size: 1
servers:
`

	extendsConfig = `
extends: %s
queue_size: 512
relay:
  conn:
    limits:
      binary: 64MB
servers:
    - relay-sjc2:8090
    - relay-backup-sjc2:8010
`

	deepExtendsConfig = `
extends: %s
queue_size: 256
servers:
    - relay-sjc3:8090
`
)

type connConfig struct {
	PingInterval string            `yaml:"ping_interval"`
	Limits       map[string]string `yaml:"limits"`
}

type relayConfig struct {
	Conn connConfig `yaml:"conn"`
}

type configuration struct {
	ListenAddress string      `yaml:"listen_address" validate:"nonzero"`
	QueueSize     int         `yaml:"queue_size" validate:"min=255"`
	Servers       []string    `validate:"nonzero"`
	Relay         relayConfig `yaml:"relay"`
}

func writeFile(t *testing.T, contents string) string {
	f, err := ioutil.TempFile("", "configtest")
	require.NoError(t, err)

	defer f.Close()

	_, err = f.Write([]byte(contents))
	require.NoError(t, err)

	return f.Name()
}

func TestLoad(t *testing.T) {
	fname := writeFile(t, baseConfig)
	defer os.Remove(fname)

	var cfg configuration
	err := Load(fname, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4385", cfg.ListenAddress)
	assert.Equal(t, 1024, cfg.QueueSize)
	assert.Equal(t, []string{"relay-sjc1:8090", "relay-backup-sjc1:8010"}, cfg.Servers)
	assert.Equal(t, "5s", cfg.Relay.Conn.PingInterval)
}

func TestLoadMissingFile(t *testing.T) {
	var cfg configuration
	err := Load("./no-config.yaml", &cfg)
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	var cfg configuration
	err := Load("./config_test.go", &cfg)
	require.Error(t, err)
}

func TestLoadInvalidConfig(t *testing.T) {
	fname := writeFile(t, invalidConfig)
	defer os.Remove(fname)

	var cfg configuration
	err := Load(fname, &cfg)
	require.Error(t, err)

	verr, ok := err.(ValidationError)
	require.True(t, ok)

	errors := map[string]validator.ErrorArray{
		"QueueSize":     {validator.ErrMin},
		"ListenAddress": {validator.ErrZeroValue},
		"Servers":       {validator.ErrZeroValue},
	}

	for field, errs := range errors {
		fieldErr := verr.ErrForField(field)
		require.NotNil(t, fieldErr, "Could not find field level error for %s", field)
		assert.Equal(t, errs, fieldErr)
	}
}

func TestLoadValidatesMergedConfigOnly(t *testing.T) {
	// Missing listen_address and servers on its own.
	partial := writeFile(t, "queue_size: 8080")
	defer os.Remove(partial)

	var cfg configuration
	err := Load(partial, &cfg)
	require.Error(t, err)

	verr, ok := err.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, validator.ErrorArray{validator.ErrZeroValue}, verr.ErrForField("ListenAddress"))

	// Extending a complete base fills the holes, so the merged result passes.
	base := writeFile(t, baseConfig)
	defer os.Remove(base)

	child := writeFile(t, fmt.Sprintf("extends: %s\nqueue_size: 8080", filepath.Base(base)))
	defer os.Remove(child)

	var merged configuration
	require.NoError(t, Load(child, &merged))
	assert.Equal(t, 8080, merged.QueueSize)
	assert.Equal(t, "localhost:4385", merged.ListenAddress)
}

func TestLoadExtends(t *testing.T) {
	fname := writeFile(t, baseConfig)
	defer os.Remove(fname)

	extends := fmt.Sprintf(extendsConfig, filepath.Base(fname))
	extendsfn := writeFile(t, extends)
	defer os.Remove(extendsfn)

	var cfg configuration
	err := Load(extendsfn, &cfg)
	require.NoError(t, err)

	// Scalars and arrays take the extending file's value, maps deep merge,
	// and anything the extending file omits is inherited.
	assert.Equal(t, "localhost:4385", cfg.ListenAddress)
	assert.Equal(t, 512, cfg.QueueSize)
	assert.Equal(t, []string{"relay-sjc2:8090", "relay-backup-sjc2:8010"}, cfg.Servers)
	assert.Equal(t, "5s", cfg.Relay.Conn.PingInterval)
	assert.Equal(t, "64KB", cfg.Relay.Conn.Limits["text"])
	assert.Equal(t, "64MB", cfg.Relay.Conn.Limits["binary"])
}

func TestLoadExtendsChain(t *testing.T) {
	fname := writeFile(t, baseConfig)
	defer os.Remove(fname)

	extends := fmt.Sprintf(extendsConfig, filepath.Base(fname))
	extendsfn := writeFile(t, extends)
	defer os.Remove(extendsfn)

	extends2 := fmt.Sprintf(deepExtendsConfig, filepath.Base(extendsfn))
	extendsfn2 := writeFile(t, extends2)
	defer os.Remove(extendsfn2)

	var cfg configuration
	err := Load(extendsfn2, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "localhost:4385", cfg.ListenAddress)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, []string{"relay-sjc3:8090"}, cfg.Servers)
}

func TestLoadExtendsAbsolutePath(t *testing.T) {
	fname := writeFile(t, baseConfig)
	defer os.Remove(fname)

	extends := fmt.Sprintf(extendsConfig, fname)
	extendsfn := writeFile(t, extends)
	defer os.Remove(extendsfn)

	var cfg configuration
	err := Load(extendsfn, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.QueueSize)
}

func TestLoadExtendsCircularRef(t *testing.T) {
	f1, err := ioutil.TempFile("", "configtest")
	require.NoError(t, err)
	defer f1.Close()
	defer os.Remove(f1.Name())

	f2, err := ioutil.TempFile("", "configtest")
	require.NoError(t, err)
	defer f2.Close()
	defer os.Remove(f2.Name())

	_, err = f1.Write([]byte(fmt.Sprintf(extendsConfig, filepath.Base(f2.Name()))))
	require.NoError(t, err)

	_, err = f2.Write([]byte(fmt.Sprintf(deepExtendsConfig, filepath.Base(f1.Name()))))
	require.NoError(t, err)

	var cfg configuration
	err = Load(f2.Name(), &cfg)
	require.Error(t, err)
	require.Equal(t, ErrCycleRef, err)
}
