// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewCmdCoords(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "coords ADDRESS",
		Short: "Print the coordinates of an address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doCoords(cmd.Context(), a, strings.Join(args, " "))
		},
	}
}

func doCoords(ctx context.Context, a *app, address string) error {
	place, err := a.Geocoder.Resolve(ctx, address)
	if err != nil {
		return errors.Wrapf(err, "resolving %q", address)
	}
	_, err = fmt.Fprintf(a.Out, "%s\t%s\n", place.Coordinate, place.DisplayName)
	return err
}
