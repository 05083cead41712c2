package main

import "oneoftools/internal/cli"

func main() {
	cli.Execute()
}
