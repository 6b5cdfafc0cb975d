package main

import "github.com/ywzqhl/triesync/internal/cli"

func main() {
	cli.Execute()
}
