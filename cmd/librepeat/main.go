package main

import "github.com/cyp0633/librepeat/internal/cli"

func main() {
	cli.Execute()
}
