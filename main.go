package main

import "fortify/cmd"

func main() {
	cmd.Execute()
}
