package main

import (
	"os"

	"dwhctl/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
