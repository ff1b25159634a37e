// Command nostr-key generates a Nostr keypair for use as the server
// signing identity.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/platform/config"
	"github.com/HumanjavaEnterprises/nostr-auth-middleware/internal/services/auth/serverkey"
)

func main() {
	out := flag.String("out", "", "write the hex secret key to this file (mode 600) instead of stdout")
	flag.Parse()

	identity, err := serverkey.Generate()
	if err != nil {
		config.Exitf("generate key: %v", err)
	}

	npub, err := identity.Npub()
	if err != nil {
		config.Exitf("encode npub: %v", err)
	}

	if *out != "" {
		if err := os.WriteFile(*out, []byte(identity.SecretKeyHex()+"\n"), 0o600); err != nil {
			config.Exitf("write key file: %v", err)
		}
		fmt.Printf("secret key written to %s\n", *out)
		fmt.Printf("public key (hex): %s\n", identity.PublicKey())
		fmt.Printf("public key (npub): %s\n", npub)
		return
	}

	nsec, err := identity.Nsec()
	if err != nil {
		config.Exitf("encode nsec: %v", err)
	}

	fmt.Printf("secret key (hex): %s\n", identity.SecretKeyHex())
	fmt.Printf("secret key (nsec): %s\n", nsec)
	fmt.Printf("public key (hex): %s\n", identity.PublicKey())
	fmt.Printf("public key (npub): %s\n", npub)
}
