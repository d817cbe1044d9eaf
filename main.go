package main

import "github.com/jmehdipour/orderdesk/cmd"

func main() {
	cmd.Execute()
}
