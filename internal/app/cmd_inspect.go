// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bep/geotag"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func NewCmdInspect(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the GPS block of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doInspect(a.Fs, a.Out, args[0])
		},
	}
}

func doInspect(fs afero.Fs, out io.Writer, filename string) error {
	b, err := afero.ReadFile(fs, filename)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}

	format := geotag.DetectFormat(b)
	if format == geotag.ImageFormatAuto {
		return errors.Errorf("%s: unrecognized image format", filename)
	}
	d, err := geotag.Extract(format, b)
	if err != nil {
		return errors.Wrapf(err, "inspecting %s", filename)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Format\t%s\n", format)
	if d.Len() == 0 {
		fmt.Fprintln(w, "GPS\tnone")
		return w.Flush()
	}
	for _, e := range d.Entries() {
		fmt.Fprintf(w, "%s\t%v\n", e.Name(), e.Value)
	}
	c, found, err := d.LatLong()
	switch {
	case err != nil:
		fmt.Fprintf(w, "Position\tinvalid: %v\n", err)
	case found:
		fmt.Fprintf(w, "Position\t%s\n", c)
	}
	return w.Flush()
}
