// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/bep/geotag"
	"github.com/bep/geotag/geocode"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const defaultConfig = `# geotag

################################## LOGGING ####################################

[logging]

#
# Logging verbosity level.
# Supported values: "DEBUG", "INFO", "WARN", "ERROR", "FATAL" or "PANIC".
#
level = "INFO"

################################## PIPELINE ###################################

[pipeline]

#
# Fixed denominator of the GPS seconds rational.
#
seconds_denominator = 1000000

#
# Quality used when re-encoding as JPEG, 1 to 100.
#
jpeg_quality = 90

################################## GEOCODER ###################################

[geocoder]

#
# Base URL of a Nominatim instance.
#
url = "https://nominatim.openstreetmap.org"

#
# The Nominatim usage policy requires an identifying user agent.
#
user_agent = ""

timeout = "10s"
max_retries = 2

################################## SERVER #####################################

[server]

addr = ":8000"

#
# Origins allowed to call the API from a browser. Use "*" to allow any.
#
allowed_origins = ["http://localhost:3000"]

#
# Maximum size of an upload in bytes.
#
max_upload_size = 20971520
`

type Config struct {
	v *viper.Viper

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Pipeline struct {
		SecondsDenominator uint32 `mapstructure:"seconds_denominator"`
		JPEGQuality        int    `mapstructure:"jpeg_quality"`
	} `mapstructure:"pipeline"`

	Geocoder struct {
		URL        string        `mapstructure:"url"`
		UserAgent  string        `mapstructure:"user_agent"`
		Timeout    time.Duration `mapstructure:"timeout"`
		MaxRetries int           `mapstructure:"max_retries"`
	} `mapstructure:"geocoder"`

	Server struct {
		Addr           string   `mapstructure:"addr"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		MaxUploadSize  int64    `mapstructure:"max_upload_size"`
	} `mapstructure:"server"`
}

func (c Config) Validate() error {
	if _, err := geotag.New(c.pipelineOptions()); err != nil {
		return err
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive, got %d", c.Server.MaxUploadSize)
	}
	return nil
}

func (c Config) pipelineOptions() geotag.Options {
	return geotag.Options{
		SecondsDenominator: c.Pipeline.SecondsDenominator,
		JPEGQuality:        c.Pipeline.JPEGQuality,
	}
}

func (c Config) nominatimOptions() geocode.NominatimOptions {
	ua := c.Geocoder.UserAgent
	if ua == "" {
		ua = "geotag/" + Version
	}
	return geocode.NominatimOptions{
		BaseURL:    c.Geocoder.URL,
		UserAgent:  ua,
		Timeout:    c.Geocoder.Timeout,
		MaxRetries: c.Geocoder.MaxRetries,
	}
}

// String renders the effective configuration as TOML.
func (c Config) String() string {
	if c.v == nil {
		return ""
	}
	const filename = "/geotag.toml"
	fs := afero.NewMemMapFs()
	w := viper.New()
	w.SetFs(fs)
	if err := w.MergeConfigMap(c.v.AllSettings()); err != nil {
		return err.Error()
	}
	if err := w.WriteConfigAs(filename); err != nil {
		return err.Error()
	}
	blob, err := afero.ReadFile(fs, filename)
	if err != nil {
		return err.Error()
	}
	return string(blob)
}

func loadConfig(fs afero.Fs, configFile string, c *Config) error {
	v := viper.New()
	v.SetFs(fs)

	v.SetEnvPrefix("GEOTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("geotag")
	v.SetConfigType("toml")
	v.AddConfigPath("$HOME/.config/")
	v.AddConfigPath("/etc/geotag/")

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read our default configuration.
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		panic(err) // Not in the user path.
	}

	// Include configuration file provided by the user.
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "reading configuration file")
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return errors.Wrap(err, "configuration unmarshaling failed")
	}

	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config did not pass validation")
	}

	c.v = v

	return nil
}
