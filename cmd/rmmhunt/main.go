// Package main implements the rmmhunt CLI.
package main

func main() {
	Execute()
}
