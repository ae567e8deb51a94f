// ./main.go
package main

import (
	"github.com/rclaycock/Cosmos-scraper-mk-2/cmd"
)

func main() {
	cmd.Execute()
}
