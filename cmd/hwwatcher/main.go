package main

import "homework-watcher/internal/cli"

func main() {
	cli.Execute()
}
