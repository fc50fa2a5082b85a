package main

import "github.com/pmholt/eventscout/internal/cli"

func main() {
	cli.Execute()
}
