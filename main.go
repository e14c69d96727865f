package main

import "tuber/cmd"

func main() {
	cmd.Execute()
}
