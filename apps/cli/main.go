package main

import (
	"fmt"
	"os"

	"github.com/arunavo4/turns-management-sub001/apps/cli/root"
)

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
