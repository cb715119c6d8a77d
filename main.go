package main

import "grabbit/cmd"

func main() {
	cmd.Execute()
}
