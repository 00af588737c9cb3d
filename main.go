package main

import (
	"os"

	"github.com/lvcoi/ytdl-here/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
