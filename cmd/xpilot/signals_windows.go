package main

import "os"

var reloadSignals []os.Signal

func isReload(os.Signal) bool { return false }
