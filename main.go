package main

import (
	"os"

	"github.com/campusdesk/notisync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
