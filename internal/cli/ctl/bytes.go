/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package ctl

import (
	"bufio"

	"github.com/foxcpp/readback/framework/config"
	"github.com/foxcpp/readback/framework/readback"
	readbackcli "github.com/foxcpp/readback/internal/cli"
	"github.com/urfave/cli/v2"
)

func init() {
	readbackcli.AddSubcommand(
		&cli.Command{
			Name:      "bytes",
			Usage:     "Print the last bytes of each input",
			ArgsUsage: "[FILE...]",
			Description: `Print the last N bytes of each input unchanged. The charset option is
not applied since the cut may split a multi-byte character.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "bytes",
					Aliases: []string{"c"},
					Usage:   "Print the last `SIZE` bytes (e.g. 512, 4K)",
					Value:   "1K",
				},
				&cli.BoolFlag{
					Name:    "quiet",
					Aliases: []string{"q"},
					Usage:   "Never print headers",
				},
			},
			Action: withEnv(bytesCommand),
		})
}

func parseCount(s string) (int64, error) {
	if n, err := config.ParseDataSize(s); err == nil {
		return n, nil
	}
	// Plain numbers are byte counts.
	return config.ParseDataSize(s + "B")
}

func bytesCommand(c *cli.Context, e *env) error {
	n, err := parseCount(c.String("bytes"))
	if err != nil {
		return cli.Exit("Error: invalid byte count: "+err.Error(), 2)
	}
	names, err := inputNames(c)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(c.App.Writer)
	printHeader := header(c, names)
	for i, name := range names {
		printHeader(out, i)
		err := e.each(c.Context, name, func(r *readback.Reader) error {
			tail, err := readback.ReadBackAll(readback.LimitReadBacker(r, n))
			if err != nil {
				return err
			}
			_, err = out.Write(tail)
			return err
		})
		if err != nil {
			out.Flush()
			return err
		}
	}
	return out.Flush()
}
