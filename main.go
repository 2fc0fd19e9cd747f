package main

import "github.com/jobsight/jobsight/cmd"

func main() {
	cmd.Execute()
}
