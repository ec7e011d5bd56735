package main

import "report-harvester/cmd"

func main() {
	cmd.Execute()
}
