package main

import "github.com/casperlundberg/mec-offloading-engine/internal/cli"

func main() {
	cli.Execute()
}
