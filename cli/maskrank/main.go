package main

import (
	"os"

	maskrankcmder "github.com/prefopt/maskrank/cmd/maskrank"
)

func main() {
	cmd := maskrankcmder.NewMaskrankCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
