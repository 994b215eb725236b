// Command arena is the esports platform client: it serves the BFF API and
// offers leaderboard, payment verification and score editing commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
