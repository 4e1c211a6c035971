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

package source

import (
	"github.com/foxcpp/readback/framework/readback"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type instrumented struct {
	rb   readback.ReadBacker
	kind string
	log  *zap.Logger

	reads, bytes, errors prometheus.Counter
}

// Instrument wraps rb so that every call to ReadBack is counted in the
// source metrics under the given kind and logged at debug level.
func Instrument(kind string, rb readback.ReadBacker, logger *zap.Logger) readback.ReadBacker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{
		rb:     rb,
		kind:   kind,
		log:    logger,
		reads:  readsTotal.WithLabelValues(kind),
		bytes:  bytesTotal.WithLabelValues(kind),
		errors: errorsTotal.WithLabelValues(kind),
	}
}

func (i *instrumented) ReadBack(p []byte) (int, error) {
	n, err := i.rb.ReadBack(p)
	i.reads.Inc()
	if n > 0 {
		i.bytes.Add(float64(n))
	}
	if err != nil {
		i.errors.Inc()
		i.log.Warn("read back failed", zap.String("kind", i.kind), zap.Int("requested", len(p)), zap.Int("read", n), zap.Error(err))
		return n, err
	}
	i.log.Debug("read back", zap.String("kind", i.kind), zap.Int("requested", len(p)), zap.Int("read", n))
	return n, nil
}
