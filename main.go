// The main package for the admissions-crawler executable.
package main

import (
	"github.com/gradstats/admissions-crawler/cmd"
)

func main() {
	cmd.Execute()
}
