package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/flate"
	"sigs.k8s.io/yaml"
)

const (
	defaultConfigDir  = "zipctx"
	defaultConfigName = "settings.yaml"

	// DefaultCompressionLevel trades a little size for speed.
	DefaultCompressionLevel = 6
)

type (
	Settings struct {
		CompressionLevel int    `json:"compression_level" validate:"deflatelevel"`
		Traversal        string `json:"traversal" validate:"oneof=segment substring"`
		Log              Log    `json:"log"`
	}

	Log struct {
		Level  string `json:"level" validate:"oneof=trace debug info warn error"`
		Pretty bool   `json:"pretty"`
	}
)

// Default returns the settings used when no settings file is present.
func Default() *Settings {
	return &Settings{
		CompressionLevel: DefaultCompressionLevel,
		Traversal:        "segment",
		Log: Log{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads the settings file at path on top of the defaults and validates the result.
func Load(path string) (*Settings, error) {
	f, err := getConfigFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}

	settings := Default()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", f, err)
	}

	if err := Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", f, err)
	}

	return settings, nil
}

// Resolve loads the explicit path when given. Otherwise it falls back to the
// per-user settings file if one exists, and to the defaults if not. The
// returned string is the file that was used, empty for defaults.
func Resolve(explicit string) (*Settings, string, error) {
	if explicit != "" {
		settings, err := Load(explicit)
		return settings, explicit, err
	}

	userDir, err := os.UserConfigDir()
	if err != nil {
		return Default(), "", nil
	}

	path := filepath.Join(userDir, defaultConfigDir, defaultConfigName)
	if _, err := os.Stat(path); err != nil {
		return Default(), "", nil
	}

	settings, err := Load(path)
	return settings, path, err
}

func Validate(settings *Settings) error {
	validate := validator.New()
	if err := validate.RegisterValidation("deflatelevel", validDeflateLevel); err != nil {
		return err
	}
	return validate.Struct(settings)
}

func validDeflateLevel(fl validator.FieldLevel) bool {
	level := fl.Field().Int()
	return level >= flate.BestSpeed && level <= flate.BestCompression
}

func getConfigFile(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("config file %s does not exist", path)
	}

	return path, nil
}
