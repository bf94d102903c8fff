package main

import "github.com/okorie22/Okorie-AI-sub005/internal/cli"

func main() {
	cli.Execute()
}
