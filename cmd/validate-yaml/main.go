package main

import (
	"fmt"
	"os"

	"github.com/blockedby/channel-history/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		file, err := config.LoadChannelsFile(path)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (%d channels)\n", path, len(file.Channels))
	}

	if failed {
		os.Exit(1)
	}
}
