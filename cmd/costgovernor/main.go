package main

import (
	"agent-cost-governor/internal/cli"
)

func main() {
	cli.Execute()
}
