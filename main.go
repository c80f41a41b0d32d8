package main

import (
	"github.com/yoanbernabeu/ragsync/cli"
)

func main() {
	cli.Execute()
}
