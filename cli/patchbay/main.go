package main

import (
	"os"

	patchbaycmder "github.com/hollowaylabs/patchbay/cmd/patchbay"
)

func main() {
	cmd := patchbaycmder.NewPatchbayCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
