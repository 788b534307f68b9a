package main

import "github.com/kebunops/opsreport/cmd"

func main() {
	cmd.Execute()
}
