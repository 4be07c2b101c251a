package main

import "sdnguard/cmd"

func main() {
	cmd.Execute()
}
