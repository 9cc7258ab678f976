package main

import (
	"os"

	"github.com/albertocavalcante/docstream/internal/cmd/docstream"
)

func main() {
	os.Exit(docstream.Run(os.Args[1:]))
}
