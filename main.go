package main

import "github.com/Mao1229/moemail/cmd"

func main() {
	cmd.Run()
}
