package main

import "github.com/churnpredict/churnd/cmd"

func main() {
	cmd.Execute()
}
