package main

import "github.com/plupoV2/aire/pkg/cli"

func main() {
	cli.Execute()
}
