package main

import "studyledger/internal/cli"

func main() {
	cli.Execute()
}
