//go:build !tinygo

// This file lets the regular Go toolchain (go vet, staticcheck, IDE
// tooling) process this directory. The real entry point only exists in
// the tinygo build (main.go); there is nothing for a host build to run.
package main

func main() {}
