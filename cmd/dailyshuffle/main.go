// Command dailyshuffle allocates people to rooms for the day and publishes
// the result.
package main

func main() {
	Execute()
}
