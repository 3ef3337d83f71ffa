// Puppetmaster host driver executable.
package main

import (
	"github.com/puppetmaster-fpga/pm-host/pm-host/cmd"
)

func main() {
	cmd.Execute()
}
