package main

import "timeledger/cmd"

func main() {
	cmd.Execute()
}
