package main

import "github.com/khanhnv2901/ctaudit/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
