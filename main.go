package main

import (
	"github.com/kovanet/kovascan/cmd"
)

func main() {
	cmd.Execute()
}
