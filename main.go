package main

import "github.com/KaramelBytes/cohortscope-cli/cmd"

func main() {
	cmd.Execute()
}
