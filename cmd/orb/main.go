// Command orb runs the voice assistant appliance: ambient playback, trigger
// sources, the session orchestrator and the local control surface.
package main

func main() {
	Execute()
}
