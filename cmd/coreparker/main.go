// File: cmd/coreparker/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// coreparker parks CPU cores of the game process while a load screen is up
// and gives them back once the load ends.

package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
