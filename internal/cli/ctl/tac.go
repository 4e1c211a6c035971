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

	"github.com/foxcpp/readback/framework/readback"
	readbackcli "github.com/foxcpp/readback/internal/cli"
	"github.com/urfave/cli/v2"
)

func init() {
	readbackcli.AddSubcommand(
		&cli.Command{
			Name:      "tac",
			Usage:     "Print lines in reverse order",
			ArgsUsage: "[FILE...]",
			Description: `Print each input with its lines in reverse order, the last line first.
Inputs are processed one after another in the order given. '-' or no
arguments mean standard input; s3://KEY and fs://KEY read objects from
the stores defined in the configuration file.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "separator",
					Aliases: []string{"s"},
					Usage:   "Use `BYTE` as the line separator instead of newline",
					Value:   "\n",
				},
			},
			Action: withEnv(tacCommand),
		})
}

func separator(c *cli.Context) (byte, error) {
	sep := c.String("separator")
	if len(sep) != 1 {
		return 0, cli.Exit("Error: separator must be a single byte", 2)
	}
	return sep[0], nil
}

func tacCommand(c *cli.Context, e *env) error {
	sep, err := separator(c)
	if err != nil {
		return err
	}
	names, err := inputNames(c)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(c.App.Writer)
	for _, name := range names {
		err := e.each(c.Context, name, func(r *readback.Reader) error {
			sc := readback.NewLineScanner(r)
			sc.SetSeparator(sep)
			for sc.Scan() {
				line, err := e.decode(sc.Bytes())
				if err != nil {
					return err
				}
				out.Write(line)
				if err := out.WriteByte(sep); err != nil {
					return err
				}
			}
			return sc.Err()
		})
		if err != nil {
			out.Flush()
			return err
		}
	}
	return out.Flush()
}
