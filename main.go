package main

import "github.com/YodaEmbedding/easy-slurm/cmd"

func main() {
	cmd.Execute()
}
