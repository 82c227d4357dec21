// Command langrun runs Langflow flows with per-node tweaks.
package main

func main() {
	Execute()
}
