package main

import "github.com/frahmantamala/chitfund-crm/cmd"

func main() {
	cmd.Execute()
}
