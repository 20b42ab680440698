package main

import "vidsource/cmd"

func main() {
	cmd.Execute()
}
