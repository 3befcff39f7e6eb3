package main

import "github.com/mahrens917/marketstore/internal/cli"

func main() {
	cli.Execute()
}
