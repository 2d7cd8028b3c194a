/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/mautops/nota-esign/cmd"

func main() {
	cmd.Execute()
}
