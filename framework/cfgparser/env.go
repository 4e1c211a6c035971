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

package parser

import (
	"os"
	"regexp"
	"strings"
)

var (
	envRe      = regexp.MustCompile(`{env:([^}]+)}`)
	envSplitRe = regexp.MustCompile(`^{env_split:([^}]+)}$`)
)

type envExpander struct {
	vars     map[string]string
	replacer *strings.Replacer
}

func newEnvExpander(environ []string) envExpander {
	vars := make(map[string]string, len(environ))
	pairs := make([]string, 0, len(environ)*2)
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		vars[parts[0]] = parts[1]
		pairs = append(pairs, "{env:"+parts[0]+"}", parts[1])
	}
	return envExpander{vars: vars, replacer: strings.NewReplacer(pairs...)}
}

// arg expands a single argument. References to unset variables are removed.
func (e envExpander) arg(s string) []string {
	if m := envSplitRe.FindStringSubmatch(s); m != nil {
		res := []string{}
		for _, part := range strings.Split(e.vars[m[1]], ",") {
			if part = strings.TrimSpace(part); part != "" {
				res = append(res, part)
			}
		}
		return res
	}
	return []string{envRe.ReplaceAllString(e.replacer.Replace(s), "")}
}

func (e envExpander) nodes(nodes []Node) []Node {
	// nil Children means "no block" and must stay nil.
	if nodes == nil {
		return nil
	}

	res := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		node.Name = envRe.ReplaceAllString(e.replacer.Replace(node.Name), "")
		args := make([]string, 0, len(node.Args))
		for _, arg := range node.Args {
			args = append(args, e.arg(arg)...)
		}
		node.Args = args
		node.Children = e.nodes(node.Children)
		res = append(res, node)
	}
	return res
}

func expandEnvironment(nodes []Node) []Node {
	return newEnvExpander(os.Environ()).nodes(nodes)
}
