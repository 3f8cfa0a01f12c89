// Command hashpassword prints a bcrypt hash for seeding accounts, or checks a
// password against an existing hash.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/JunoAX/greenquest-go/internal/auth"
)

func main() {
	cost := flag.Int("cost", 10, "bcrypt cost")
	check := flag.String("check", "", "existing hash to compare against instead of hashing")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hashpassword [-cost N] [-check HASH] PASSWORD")
		os.Exit(2)
	}
	password := flag.Arg(0)

	if *check != "" {
		if err := auth.CheckPassword(*check, password); err != nil {
			fmt.Println("FAIL:", err)
			os.Exit(1)
		}
		fmt.Println("PASS - hash matches password")
		return
	}

	hash, err := auth.HashPassword(password, *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "FAIL:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
