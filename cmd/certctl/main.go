package main

import "github.com/avvvet/certify-services/internal/certctl/cmd"

func main() {
	cmd.Execute()
}
