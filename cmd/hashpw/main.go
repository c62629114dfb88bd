package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	pkgauth "github.com/atkt1/rzgateway/pkg/auth"
)

// hashpw generates the bcrypt hash expected in STATIC_AUTH_PASSWORD_HASH.
// The password is read from stdin so it never lands in shell history:
//
//	echo -n 'secret' | hashpw
func main() {
	reader := bufio.NewReader(os.Stdin)

	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		fmt.Fprintln(os.Stderr, "failed to read password from stdin:", err)
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to hash password:", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
