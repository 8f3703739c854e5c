package main

import (
	"github.com/flagkit/go-sdk/internal/cli"
)

func main() {
	cli.Execute()
}
