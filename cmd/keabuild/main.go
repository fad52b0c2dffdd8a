package main

import "github.com/goplus/keabuild/cmd/keabuild/internal"

func main() {
	internal.Execute()
}
