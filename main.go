package main

import "github.com/harrisonrobin/taskplan/cmd"

func main() {
	cmd.Execute()
}
