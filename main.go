package main

import "zgate/cmd"

func main() {
	cmd.Execute()
}
