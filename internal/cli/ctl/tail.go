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
	"fmt"

	"github.com/foxcpp/readback/framework/readback"
	readbackcli "github.com/foxcpp/readback/internal/cli"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func init() {
	readbackcli.AddSubcommand(
		&cli.Command{
			Name:      "tail",
			Usage:     "Print the last lines of each input",
			ArgsUsage: "[FILE...]",
			Description: `Print the last N lines of each input in their original order. With
several inputs each one is preceded by a '==> NAME <==' header. Inputs are
read concurrently, output follows the order of arguments.`,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "lines",
					Aliases: []string{"n"},
					Usage:   "Print the last `N` lines",
					Value:   10,
				},
				&cli.IntFlag{
					Name:    "jobs",
					Aliases: []string{"j"},
					Usage:   "Read at most `N` inputs at once",
					Value:   4,
				},
				&cli.BoolFlag{
					Name:    "quiet",
					Aliases: []string{"q"},
					Usage:   "Never print headers",
				},
			},
			Action: withEnv(tailCommand),
		})
}

// lastLines returns up to n lines from the end of r, the last line first.
func lastLines(r *readback.Reader, n int) ([][]byte, error) {
	var lines [][]byte
	sc := readback.NewLineScanner(r)
	for len(lines) < n && sc.Scan() {
		lines = append(lines, sc.Bytes())
	}
	return lines, sc.Err()
}

func header(c *cli.Context, names []string) func(w *bufio.Writer, i int) {
	if len(names) < 2 || c.Bool("quiet") {
		return func(*bufio.Writer, int) {}
	}
	return func(w *bufio.Writer, i int) {
		if i != 0 {
			w.WriteByte('\n')
		}
		fmt.Fprintf(w, "==> %s <==\n", names[i])
	}
}

func tailCommand(c *cli.Context, e *env) error {
	n := c.Int("lines")
	if n < 0 {
		return cli.Exit("Error: number of lines must not be negative", 2)
	}
	names, err := inputNames(c)
	if err != nil {
		return err
	}

	results := make([][][]byte, len(names))
	g, ctx := errgroup.WithContext(c.Context)
	if jobs := c.Int("jobs"); jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			return e.each(ctx, name, func(r *readback.Reader) error {
				lines, err := lastLines(r, n)
				results[i] = lines
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := bufio.NewWriter(c.App.Writer)
	printHeader := header(c, names)
	for i, lines := range results {
		printHeader(out, i)
		for j := len(lines) - 1; j >= 0; j-- {
			line, err := e.decode(lines[j])
			if err != nil {
				out.Flush()
				return err
			}
			out.Write(line)
			out.WriteByte('\n')
		}
	}
	return out.Flush()
}
