package main

import "github.com/Zhima-Mochi/minishop-checkout/internal/cli"

func main() {
	cli.Execute()
}
