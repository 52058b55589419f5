package main

import (
	"github.com/ivritype/tirgum/cmd/tirgum/cmd"
)

func main() {
	cmd.Execute()
}
