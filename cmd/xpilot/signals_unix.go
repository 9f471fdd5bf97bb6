//go:build !windows

package main

import (
	"os"
	"syscall"
)

var reloadSignals = []os.Signal{syscall.SIGHUP}

func isReload(sig os.Signal) bool { return sig == syscall.SIGHUP }
