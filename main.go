// The main package for the shopcrawl executable.
package main

import (
	"github.com/calderdata/shopcrawl/cmd"
)

func main() {
	cmd.Execute()
}
