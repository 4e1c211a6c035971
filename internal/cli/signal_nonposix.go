//go:build windows || plan9
// +build windows plan9

package readbackcli

import (
	"os"
	"os/signal"
)

func waitForSignal() os.Signal {
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, os.Interrupt)
	return <-sig
}
