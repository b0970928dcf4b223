package main

import "github.com/tenantgate/tenantgate/cmd/tenantgate/cmd"

func main() {
	cmd.Execute()
}
