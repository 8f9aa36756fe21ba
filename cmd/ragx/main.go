// ragx runs the template-driven RAG pipeline service.
package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/ragx/internal/ragx"
)

func main() {
	if err := ragx.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
