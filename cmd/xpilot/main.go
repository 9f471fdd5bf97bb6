// Command xpilot drives an X account through a real browser: log in, import
// cookies, and publish, reply, like, follow and the other catalog actions.
package main

import (
	"os"
)

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}
