package main

import "binup/internal/cli"

func main() {
	cli.Execute()
}
