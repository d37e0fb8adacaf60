// tokengen mints join tokens for servers running with auth mode "token".
//
// The token format is "accountID.expiryUnix.signature" with an
// HMAC-SHA256 signature, matching what the server's verifier expects.
//
// Usage:
//
//	go run ./cmd/tokengen -secret <secret> -account <id> [-ttl 24h]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nexusroom/server/internal/identity"
)

func main() {
	secret := flag.String("secret", "", "token secret (must match auth.token_secret)")
	account := flag.String("account", "", "account id to mint for")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" || *account == "" {
		fmt.Fprintln(os.Stderr, "usage: tokengen -secret <secret> -account <id> [-ttl 24h]")
		os.Exit(2)
	}

	fmt.Println(identity.Mint(*secret, *account, *ttl))
}
