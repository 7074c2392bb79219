package main

import "github.com/sems/expense-service/cmd"

func main() {
	cmd.Execute()
}
