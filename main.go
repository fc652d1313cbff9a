package main

import "github.com/ValentinKolb/homekv/cmd"

func main() {
	cmd.Execute()
}
