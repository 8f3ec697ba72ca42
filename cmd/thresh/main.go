package main

import (
	"github.com/MeKo-Tech/thresh/cmd/thresh/cmd"
)

func main() {
	cmd.Execute()
}
