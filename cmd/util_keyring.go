package cmd

import (
	"os"

	"github.com/99designs/keyring"
)

func filePasswordFunc(prompt string) (string, error) {
	return promptSecret(prompt, os.Stderr)
}

func openKeyring(allowedBackends []keyring.BackendType) (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{
		AllowedBackends:          allowedBackends,
		KeychainTrustApplication: true,
		ServiceName:              "aws-cognito-flags",
		LibSecretCollectionName:  "awscognitoflags",
		FilePasswordFunc:         filePasswordFunc,
	})
}
