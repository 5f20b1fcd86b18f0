package main

import (
	"os"

	"github.com/CleanExpo/Disaster-Recovery-sub021/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
