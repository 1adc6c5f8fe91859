// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package app implements the geotag command line interface and HTTP API.
package app

import (
	"io"

	"github.com/bep/geotag"
	"github.com/bep/geotag/geocode"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

const defaultLogLevel = logrus.WarnLevel

// Env holds what the commands need from the outside world.
// Zero values are replaced with the real thing.
type Env struct {
	Out    io.Writer
	Stderr io.Writer

	// Fs is used for all file access. Default is the OS file system.
	Fs afero.Fs

	// Geocoder resolves addresses. Default is a Nominatim client
	// built from the configuration.
	Geocoder geocode.Geocoder
}

type app struct {
	Env

	logger *logrus.Logger
	config *Config

	configFile     string
	verbosityLevel string
}

func Run(out, stderr io.Writer) error {
	c := RootCommand(Env{Out: out, Stderr: stderr})
	return c.Execute()
}

func RootCommand(env Env) *cobra.Command {
	if env.Fs == nil {
		env.Fs = afero.NewOsFs()
	}
	if env.Out == nil {
		env.Out = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}

	a := &app{
		Env:    env,
		logger: logrus.New(),
		config: &Config{},
	}

	cmd := &cobra.Command{
		Use:           "geotag",
		Short:         "Embed GPS coordinates into JPEG, PNG and WebP images",
		SilenceErrors: true,
	}

	cmd.SetOut(env.Out)
	cmd.SetErr(env.Stderr)
	cmd.Root().SilenceUsage = true

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(a.Fs, a.configFile, a.config); err != nil {
			return err
		}

		if a.verbosityLevel == "" {
			a.verbosityLevel = a.config.Logging.Level
		}
		if err := setUpLogger(a.logger, a.Stderr, a.verbosityLevel); err != nil {
			return err
		}

		if a.Geocoder == nil {
			g, err := geocode.NewNominatim(a.config.nominatimOptions())
			if err != nil {
				return err
			}
			a.Geocoder = g
		}

		return nil
	}

	cmd.AddCommand(NewCmdTag(a))
	cmd.AddCommand(NewCmdCoords(a))
	cmd.AddCommand(NewCmdInspect(a))
	cmd.AddCommand(NewCmdServer(a))
	cmd.AddCommand(NewCmdConfig(env.Out, a.config))
	cmd.AddCommand(NewCmdVersion(env.Out))

	cmd.PersistentFlags().StringVarP(&a.verbosityLevel, "verbosity", "v", "", "Log level (debug, info, warn, error, fatal, panic)")
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Configuration file")

	return cmd
}

// pipeline returns a Pipeline that reports its warnings to logger.
func (a *app) pipeline(logger logrus.FieldLogger) (*geotag.Pipeline, error) {
	opts := a.config.pipelineOptions()
	opts.Warnf = logger.WithField("component", "pipeline").Warnf
	return geotag.New(opts)
}

func setUpLogger(logger *logrus.Logger, out io.Writer, level string) error {
	if level == "" {
		level = defaultLogLevel.String()
	}
	logger.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	logger.SetLevel(lvl)
	return nil
}
