package main

import "repomind/cmd"

func main() {
	cmd.Execute()
}
