package main

import "github.com/mabhi256/dumpdiag/cmd"

func main() {
	cmd.Execute()
}
