// Command icm is the CLI and MCP-server entrypoint for ICM, the infinite
// context memory service. It wraps the internal store/retrieval/lifecycle/
// graph/extraction packages behind the subcommands spec.md §6 names.
package main

func main() {
	Execute()
}
