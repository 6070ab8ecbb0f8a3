package main

import "github.com/vitalvas/restkit/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
