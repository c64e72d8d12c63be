package main

import "github.com/mcoot/presencechat/internal/cli"

func main() {
	cli.Execute()
}
