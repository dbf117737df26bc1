package main

import (
	"github.com/zedfleet/zedfleet/cmd"
)

func main() {
	cmd.Execute()
}
