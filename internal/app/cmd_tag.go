// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bep/geotag"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type tagOptions struct {
	address string
	lat     float64
	lon     float64
	format  string
	output  string
}

func NewCmdTag(a *app) *cobra.Command {
	var opts tagOptions
	cmd := &cobra.Command{
		Use:   "tag [flags] INPUT",
		Short: "Write GPS coordinates into an image",
		Long: `Re-encode INPUT in the requested format with an EXIF GPS block.

The coordinate is given either as an address, resolved with the configured
geocoder, or directly with --lat and --lon.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasLatLon := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
			switch {
			case opts.address != "" && hasLatLon:
				return errors.New("use either --address or --lat and --lon, not both")
			case opts.address == "" && !hasLatLon:
				return errors.New("one of --address or --lat and --lon is required")
			case hasLatLon && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")):
				return errors.New("--lat and --lon must be used together")
			}
			return doTag(cmd.Context(), a, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "", "Address to geocode")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format (jpg, jpeg, png or webp), default is the input format")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file, default is <name>_gps.<ext> next to INPUT")

	return cmd
}

func doTag(ctx context.Context, a *app, input string, opts tagOptions) error {
	logger := a.logger.WithField("cmd", "tag")

	target := geotag.ImageFormatAuto
	if opts.format != "" {
		var err error
		if target, err = geotag.ParseImageFormat(opts.format); err != nil {
			return err
		}
	}

	coord := geotag.Coordinate{Latitude: opts.lat, Longitude: opts.lon}
	if opts.address != "" {
		place, err := a.Geocoder.Resolve(ctx, opts.address)
		if err != nil {
			return errors.Wrapf(err, "resolving %q", opts.address)
		}
		logger.WithField("place", place.DisplayName).Infof("Resolved address to %s", place.Coordinate)
		coord = place.Coordinate
	}

	src, err := afero.ReadFile(a.Fs, input)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}

	p, err := a.pipeline(logger)
	if err != nil {
		return err
	}
	res, err := p.Run(src, coord, target)
	if err != nil {
		return errors.Wrapf(err, "processing %s", input)
	}

	output := opts.output
	if output == "" {
		output = filepath.Join(filepath.Dir(input), outputName(input, res.Format.Extension()))
	}
	if err := afero.WriteFile(a.Fs, output, res.Data, 0o644); err != nil {
		return errors.Wrap(err, "writing output")
	}

	logger.WithField("bytes", len(res.Data)).Debugf("Wrote %s", output)
	_, err = fmt.Fprintf(a.Out, "%s\t%s\n", output, coord)
	return err
}

// outputName returns <name>_gps.<ext> for the base name of filename.
func outputName(filename, ext string) string {
	base := path.Base(filepath.ToSlash(filename))
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	return fmt.Sprintf("%s_gps.%s", name, ext)
}
