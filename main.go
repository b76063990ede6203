package main

import (
	"github.com/DanSipola/aws-gate/cmd"
)

func main() {
	cmd.Execute()
}
