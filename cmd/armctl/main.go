package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(log.Lshortfile)

	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
